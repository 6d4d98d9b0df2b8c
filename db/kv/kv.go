// Package kv implements the persistence façade on BoltDB. Each bounded
// context gets its own database file, so a unit of work in one context
// never blocks writers in another.
package kv

import (
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	prombbolt "github.com/prysmaticlabs/prombbolt"
	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

var log = logrus.WithField("prefix", "db")

const blockCacheSize = 256

var contextFiles = []string{
	"blockchain.db",
	"bank.db",
	"identity.db",
	"feeds.db",
	"reactions.db",
}

// Store holds the open databases of the five bounded contexts.
type Store struct {
	blockchainDB *bolt.DB
	bankDB       *bolt.DB
	identityDB   *bolt.DB
	feedsDB      *bolt.DB
	reactionsDB  *bolt.DB
	databasePath string
	blockCache   *lru.Cache
	collectors   []prometheus.Collector
}

// NewKVStore opens (or creates) the bounded-context databases under the
// directory path given and creates the kv buckets of the schema.
func NewKVStore(dirPath string) (*Store, error) {
	if err := os.MkdirAll(dirPath, 0700); err != nil {
		return nil, err
	}
	opts := &bolt.Options{Timeout: 1 * time.Second, InitialMmapSize: 10e6}
	dbs := make([]*bolt.DB, 0, len(contextFiles))
	for _, name := range contextFiles {
		db, err := bolt.Open(filepath.Join(dirPath, name), 0600, opts)
		if err != nil {
			if err == bolt.ErrTimeout {
				return nil, errors.Errorf("cannot obtain lock on %s, database may be in use by another process", name)
			}
			return nil, err
		}
		dbs = append(dbs, db)
	}
	blockCache, err := lru.New(blockCacheSize)
	if err != nil {
		return nil, err
	}
	s := &Store{
		blockchainDB: dbs[0],
		bankDB:       dbs[1],
		identityDB:   dbs[2],
		feedsDB:      dbs[3],
		reactionsDB:  dbs[4],
		databasePath: dirPath,
		blockCache:   blockCache,
	}
	buckets := map[*bolt.DB][][]byte{
		s.blockchainDB: {blocksBucket, blockIndexBucket, chainStateBucket},
		s.bankDB:       {balancesBucket, appliedBucket},
		s.identityDB:   {profilesBucket},
		s.feedsDB: {
			feedsBucket, participantsBucket, personalBucket, messagesBucket,
			feedMessagesBucket, commitmentsBucket, bansBucket, merkleRootsBucket,
		},
		s.reactionsDB: {talliesBucket, nullifiersBucket},
	}
	for db, names := range buckets {
		if err := db.Update(func(tx *bolt.Tx) error {
			return createBuckets(tx, names...)
		}); err != nil {
			return nil, err
		}
	}
	for i, db := range []*bolt.DB{s.blockchainDB, s.bankDB, s.identityDB, s.feedsDB, s.reactionsDB} {
		c := prombbolt.New("hushnode_"+contextFiles[i][:len(contextFiles[i])-3], db)
		if err := prometheus.Register(c); err != nil {
			log.WithError(err).Debug("Could not register bolt collector")
			continue
		}
		s.collectors = append(s.collectors, c)
	}
	return s, nil
}

// Close closes every bounded-context database.
func (s *Store) Close() error {
	for _, c := range s.collectors {
		prometheus.Unregister(c)
	}
	for _, db := range []*bolt.DB{s.blockchainDB, s.bankDB, s.identityDB, s.feedsDB, s.reactionsDB} {
		if err := db.Close(); err != nil {
			return err
		}
	}
	return nil
}

// DatabasePath at which this store writes files.
func (s *Store) DatabasePath() string {
	return s.databasePath
}

// ClearDB removes the previously stored databases in the data directory.
func (s *Store) ClearDB() error {
	for _, name := range contextFiles {
		p := filepath.Join(s.databasePath, name)
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := os.Remove(p); err != nil {
			return err
		}
	}
	return nil
}

func createBuckets(tx *bolt.Tx, buckets ...[]byte) error {
	for _, bucket := range buckets {
		if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
			return err
		}
	}
	return nil
}
