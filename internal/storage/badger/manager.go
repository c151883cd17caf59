package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsum/internal/common"
	"github.com/ternarybob/responsum/internal/interfaces"
)

// Manager bundles the Badger-backed storage implementations behind one
// connection.
type Manager struct {
	db       *BadgerDB
	document interfaces.DocumentStorage
	index    interfaces.IndexStorage
	kv       interfaces.KVStorage
	logger   arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:       db,
		document: NewDocumentStorage(db, logger),
		index:    NewIndexStorage(db, logger),
		kv:       NewKVStorage(db, logger),
		logger:   logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// DocumentStorage returns the Document storage interface
func (m *Manager) DocumentStorage() interfaces.DocumentStorage {
	return m.document
}

// IndexStorage returns the Index storage interface
func (m *Manager) IndexStorage() interfaces.IndexStorage {
	return m.index
}

// KVStorage returns the KeyValue storage interface
func (m *Manager) KVStorage() interfaces.KVStorage {
	return m.kv
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
