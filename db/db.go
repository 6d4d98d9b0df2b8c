// Package db exports the persistence façade of the node.
package db

import (
	"github.com/Hushnetwork-social/hush-server-node-sub008/db/iface"
	"github.com/Hushnetwork-social/hush-server-node-sub008/db/kv"
)

// Database is the aggregate of the five bounded contexts.
type Database = iface.Database

// NewDB opens the bounded-context databases under the data directory.
func NewDB(dirPath string) (Database, error) {
	return kv.NewKVStore(dirPath)
}
