package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamKey returns the cache key for an exam's metadata.
func (r *CacheKeyStruct) ExamKey(examID uint64) string {
	return fmt.Sprintf("exam:%d:info", examID)
}

// ExamQuestionsKey returns the cache key for an exam's question list.
func (r *CacheKeyStruct) ExamQuestionsKey(examID uint64) string {
	return fmt.Sprintf("exam:%d:questions", examID)
}

// LoginChallengeKey returns the cache key holding a wallet's pending login nonce.
func (r *CacheKeyStruct) LoginChallengeKey(address string) string {
	return fmt.Sprintf("login:%s:challenge", address)
}

// LogsChannel is the Redis PubSub channel live ledger logs are fanned out on.
func (r *CacheKeyStruct) LogsChannel() string {
	return "ledger:logs"
}

var CacheKey = NewCacheKeyStruct()
