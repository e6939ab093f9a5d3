package config

import (
	"fmt"
	"strings"
)

type LockKeyStruct struct{}

func NewLockKeyStruct() *LockKeyStruct {
	return &LockKeyStruct{}
}

// StageLockKey returns the run-lock key for a pipeline stage
func (r *LockKeyStruct) StageLockKey(stage string) string {
	return fmt.Sprintf("etl:lock:%s", stage)
}

// WageStageLockKey returns the run-lock key for a single-state wage fetch
func (r *LockKeyStruct) WageStageLockKey(stateAbbr string) string {
	return fmt.Sprintf("etl:lock:wages:%s", strings.ToUpper(stateAbbr))
}

var LockKey = NewLockKeyStruct()
