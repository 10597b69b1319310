package rdbms

import (
	"github.com/pkg/errors"

	"github.com/Rohesen/walmart-ingest/constants"
	"github.com/Rohesen/walmart-ingest/logger"
	"github.com/Rohesen/walmart-ingest/rdbms/shared"
)

// OpenDbConnection opens a warehouse connection appropriate for the connection type.
func OpenDbConnection(log logger.Logger, conn shared.ConnectionDetails) (shared.Connector, error) {
	switch conn.Type {
	case constants.ConnectionTypeSnowflake:
		return NewSnowflakeConnection(log, shared.GetDsnConnectionDetails(&conn))
	case constants.ConnectionTypeMock:
		return shared.NewMockConnection(log), nil
	default:
		return nil, errors.Errorf("unsupported connection type %q", conn.Type)
	}
}
