package storage

import (
	"fmt"

	"go.etcd.io/bbolt"
)

// DeviceStorage persists durable per-browser values, the server-side
// equivalent of a browser's local storage.
type DeviceStorage struct {
	db *bbolt.DB
}

// NewDeviceStorage creates a device storage on an initialized database
func NewDeviceStorage(db *bbolt.DB) *DeviceStorage {
	return &DeviceStorage{db: db}
}

// KV returns the key/value view of a single device
func (s *DeviceStorage) KV(deviceID string) *DeviceKV {
	return &DeviceKV{db: s.db, prefix: deviceID + "/"}
}

// DeviceKV is the durable storage namespace of one device
type DeviceKV struct {
	db     *bbolt.DB
	prefix string
}

// Get returns the stored value for key
func (kv *DeviceKV) Get(key string) (string, bool) {
	var (
		value string
		found bool
	)
	err := kv.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketDevices).Get([]byte(kv.prefix + key))
		if v != nil {
			value = string(v)
			found = true
		}
		return nil
	})
	if err != nil {
		return "", false
	}
	return value, found
}

// Set stores value under key
func (kv *DeviceKV) Set(key, value string) error {
	return kv.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketDevices).Put([]byte(kv.prefix+key), []byte(value)); err != nil {
			return fmt.Errorf("failed to store %s: %w", key, err)
		}
		return nil
	})
}

// Delete removes key; deleting a missing key is not an error
func (kv *DeviceKV) Delete(key string) error {
	return kv.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDevices).Delete([]byte(kv.prefix + key))
	})
}
