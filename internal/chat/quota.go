package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const quotaDateLayout = "2006-01-02"

func quotaCountKey(patientID string) string {
	return fmt.Sprintf("chat:quota:%s", patientID)
}

func quotaResetKey(patientID string) string {
	return fmt.Sprintf("chat:quota_reset:%s", patientID)
}

// QuotaStore tracks how many messages a patient has sent today. The
// counter resets lazily: a stored count from a previous day reads back
// as zero, and the next Record stamps the current date.
type QuotaStore struct {
	kv  KVStore
	now func() time.Time
}

// NewQuotaStore builds a quota store over the given KV backend.
func NewQuotaStore(kv KVStore) *QuotaStore {
	if kv == nil {
		panic("chat: kv store cannot be nil")
	}
	return &QuotaStore{kv: kv, now: time.Now}
}

// Used returns the number of messages the patient has sent today.
func (q *QuotaStore) Used(ctx context.Context, patientID string) (int, error) {
	storedDate, err := q.kv.Get(ctx, quotaResetKey(patientID))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("chat: read quota reset date failed: %w", err)
	}
	if storedDate != q.today() {
		return 0, nil
	}

	raw, err := q.kv.Get(ctx, quotaCountKey(patientID))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("chat: read quota count failed: %w", err)
	}
	count, err := strconv.Atoi(raw)
	if err != nil || count < 0 {
		// A corrupt counter is treated as unused rather than locking
		// the patient out for the day.
		return 0, nil
	}
	return count, nil
}

// Record persists a new used count for today.
func (q *QuotaStore) Record(ctx context.Context, patientID string, used int) error {
	if err := q.kv.Set(ctx, quotaCountKey(patientID), strconv.Itoa(used)); err != nil {
		return fmt.Errorf("chat: write quota count failed: %w", err)
	}
	if err := q.kv.Set(ctx, quotaResetKey(patientID), q.today()); err != nil {
		return fmt.Errorf("chat: write quota reset date failed: %w", err)
	}
	return nil
}

func (q *QuotaStore) today() string {
	return q.now().UTC().Format(quotaDateLayout)
}
