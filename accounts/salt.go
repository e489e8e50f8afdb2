package accounts

import (
	"encoding/binary"
	"encoding/json"

	"go.etcd.io/bbolt"
)

var invalidatedSaltKey = []byte("invalidated")

// CurrentSalt returns the current salt epoch, defaulting to 0 before the
// first rotation.
func CurrentSalt(tx *bbolt.Tx) (uint32, error) {
	bucket := tx.Bucket(saltBucket)
	if bucket == nil {
		return 0, ErrDBNotInitialized
	}
	v := bucket.Get(currentSaltKey)
	if v == nil {
		return 0, nil
	}
	return binary.BigEndian.Uint32(v), nil
}

// InvalidatedSalts returns every salt epoch that has been rotated away
// from, oldest first.
func InvalidatedSalts(tx *bbolt.Tx) ([]uint32, error) {
	bucket := tx.Bucket(saltBucket)
	if bucket == nil {
		return nil, ErrDBNotInitialized
	}
	v := bucket.Get(invalidatedSaltKey)
	if v == nil {
		return nil, nil
	}
	var out []uint32
	if err := json.Unmarshal(v, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RotateSalt advances the current salt epoch by one, moving the prior
// epoch onto the invalidated list. Envelopes committed to nonces under the
// prior epoch are implicitly released: they can never re-authorize since
// envelopes commit the epoch hint (§4.4 Nonces).
func RotateSalt(tx *bbolt.Tx) (newEpoch uint32, invalidated []uint32, err error) {
	bucket := tx.Bucket(saltBucket)
	if bucket == nil {
		return 0, nil, ErrDBNotInitialized
	}

	current, err := CurrentSalt(tx)
	if err != nil {
		return 0, nil, err
	}
	invalidated, err = InvalidatedSalts(tx)
	if err != nil {
		return 0, nil, err
	}

	invalidated = append(invalidated, current)
	newEpoch = current + 1
	log.Infof("rotating salt epoch %d -> %d", current, newEpoch)

	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, newEpoch)
	if err := bucket.Put(currentSaltKey, buf); err != nil {
		return 0, nil, err
	}

	encoded, err := json.Marshal(invalidated)
	if err != nil {
		return 0, nil, err
	}
	if err := bucket.Put(invalidatedSaltKey, encoded); err != nil {
		return 0, nil, err
	}

	return newEpoch, invalidated, nil
}

// IsSaltEpochAcceptable reports whether epoch is the live salt epoch. Only
// the current epoch's nonce commitments are meaningful; any other hint
// means the envelope was signed under a rotated-away epoch.
func IsSaltEpochAcceptable(tx *bbolt.Tx, epoch uint32) (bool, error) {
	current, err := CurrentSalt(tx)
	if err != nil {
		return false, err
	}
	return epoch == current, nil
}
