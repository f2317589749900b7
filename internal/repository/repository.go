package repository

import "errors"

// Package repository contains data access layer abstractions.
// Implementations live in subpackages (postgres, memory) inside this directory.

// ErrNotFound is returned by implementations when no row matches the given ID.
var ErrNotFound = errors.New("record not found")
