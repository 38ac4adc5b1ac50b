package session

import (
	"fmt"
	"strings"

	"github.com/sqlingo/sqlingo/internal/backend"
)

type Engine string

const (
	EngineMySQL      Engine = "mysql"
	EnginePostgreSQL Engine = "postgresql"
	EngineSQLite     Engine = "sqlite"
)

const DefaultHost = "localhost:3308"

func ParseEngine(raw string) (Engine, error) {
	switch Engine(strings.ToLower(strings.TrimSpace(raw))) {
	case EngineMySQL:
		return EngineMySQL, nil
	case EnginePostgreSQL, "postgres":
		return EnginePostgreSQL, nil
	case EngineSQLite:
		return EngineSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database type %q", raw)
	}
}

type Field string

const (
	FieldUserID   Field = "userId"
	FieldHost     Field = "host"
	FieldUsername Field = "username"
	FieldPassword Field = "password"
	FieldDatabase Field = "database"
	FieldEngine   Field = "engine"
)

// Fields lists the profile fields in form order.
var Fields = []Field{FieldUserID, FieldEngine, FieldHost, FieldUsername, FieldPassword, FieldDatabase}

type ConnectionProfile struct {
	UserID   string
	Host     string
	Username string
	Password string
	Database string
	Engine   Engine
}

func NewProfile() ConnectionProfile {
	return ConnectionProfile{Host: DefaultHost, Engine: EngineMySQL}
}

func (p ConnectionProfile) Get(field Field) (string, error) {
	switch field {
	case FieldUserID:
		return p.UserID, nil
	case FieldHost:
		return p.Host, nil
	case FieldUsername:
		return p.Username, nil
	case FieldPassword:
		return p.Password, nil
	case FieldDatabase:
		return p.Database, nil
	case FieldEngine:
		return string(p.Engine), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
}

func (p *ConnectionProfile) set(field Field, value string) error {
	switch field {
	case FieldUserID:
		p.UserID = value
	case FieldHost:
		p.Host = value
	case FieldUsername:
		p.Username = value
	case FieldPassword:
		p.Password = value
	case FieldDatabase:
		p.Database = value
	case FieldEngine:
		engine, err := ParseEngine(value)
		if err != nil {
			return &Error{Kind: KindValidation, Message: err.Error(), Fields: []Field{FieldEngine}}
		}
		p.Engine = engine
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

// Missing reports the required fields that are still empty. Engine always
// has a value and is never reported.
func (p ConnectionProfile) Missing() []Field {
	var missing []Field
	for _, field := range []Field{FieldUserID, FieldHost, FieldUsername, FieldPassword, FieldDatabase} {
		value, _ := p.Get(field)
		if value == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

// Redacted returns a copy safe for display and logs.
func (p ConnectionProfile) Redacted() ConnectionProfile {
	if p.Password != "" {
		p.Password = "******"
	}
	return p
}

func (p ConnectionProfile) registerRequest() backend.RegisterRequest {
	return backend.RegisterRequest{
		UserID:   p.UserID,
		Link:     p.Host,
		Username: p.Username,
		Password: p.Password,
		Database: p.Database,
		Type:     string(p.Engine),
	}
}
