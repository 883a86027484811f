// Package cache stores per-student matched-internship results in Redis.
//
//	Key:   portal:internships:<student_id>
//	Value: JSON array of scored internships
//	TTL:   cache lifetime
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/uniportal/internship-portal/internal/matching"
)

// InternshipsPrefix is the Redis key prefix for cached results.
const InternshipsPrefix = "portal:internships:"

// Internships is a Redis-backed matching.InternshipCache.
type Internships struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewInternships creates a cache whose entries live for ttl.
func NewInternships(client *redis.Client, ttl time.Duration) *Internships {
	return &Internships{client: client, prefix: InternshipsPrefix, ttl: ttl}
}

func (c *Internships) key(studentID int64) string {
	return c.prefix + strconv.FormatInt(studentID, 10)
}

// Get returns the cached list. The boolean is false on a miss.
func (c *Internships) Get(ctx context.Context, studentID int64) ([]matching.ScoredInternship, bool, error) {
	data, err := c.client.Get(ctx, c.key(studentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get student %d: %w", studentID, err)
	}

	var items []matching.ScoredInternship
	if err := json.Unmarshal(data, &items); err != nil {
		// A corrupt entry is a miss; the next Set overwrites it.
		return nil, false, nil
	}
	return items, true, nil
}

// Set stores the list for the student.
func (c *Internships) Set(ctx context.Context, studentID int64, items []matching.ScoredInternship) error {
	if items == nil {
		items = []matching.ScoredInternship{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("cache: marshal student %d: %w", studentID, err)
	}
	if err := c.client.Set(ctx, c.key(studentID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set student %d: %w", studentID, err)
	}
	return nil
}

// Invalidate drops the cached list for the student.
func (c *Internships) Invalidate(ctx context.Context, studentID int64) error {
	if err := c.client.Del(ctx, c.key(studentID)).Err(); err != nil {
		return fmt.Errorf("cache: invalidate student %d: %w", studentID, err)
	}
	return nil
}
