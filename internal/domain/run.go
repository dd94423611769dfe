package domain

import (
	"errors"
	"strings"
	"time"
)

type RunStatus string

const (
	RunStatusRunning  RunStatus = "RUNNING"
	RunStatusComplete RunStatus = "COMPLETE"
	RunStatusFailed   RunStatus = "FAILED"
)

// Terminal reports whether a run may never leave this status.
func (s RunStatus) Terminal() bool {
	return s == RunStatusComplete || s == RunStatusFailed
}

// CanTransitionTo enforces the only legal transitions:
// RUNNING -> COMPLETE and RUNNING -> FAILED.
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	return s == RunStatusRunning && next.Terminal()
}

// RunRecord is the persisted snapshot of one creative run.
type RunRecord struct {
	ID            string
	CampaignID    string
	Status        RunStatus
	Brief         CreativeBrief
	BrandStyle    BrandStyle
	ModelVersions map[string]string
	Error         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (r RunRecord) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("run id is required")
	}
	if strings.TrimSpace(string(r.Status)) == "" {
		return errors.New("status is required")
	}
	return nil
}

// VariantRecord is the persisted snapshot of one variant within a run.
// The (RunID, Index) pair is unique per run.
type VariantRecord struct {
	ID             string
	RunID          string
	Index          int
	Copy           CopyVariant
	PromptText     string
	NegativePrompt string
	ImageURL       string
	QCPassed       bool
	QCText         string
	QCScore        *float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (v VariantRecord) Validate() error {
	if strings.TrimSpace(v.ID) == "" {
		return errors.New("variant id is required")
	}
	if strings.TrimSpace(v.RunID) == "" {
		return errors.New("run id is required")
	}
	if v.Index < 1 {
		return errors.New("variant index must be >= 1")
	}
	return nil
}
