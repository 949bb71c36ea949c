package domain

import "errors"

// ErrGraphNotFound is returned when no snapshot exists for a graph ID.
var ErrGraphNotFound = errors.New("graph not found")

// ErrNodeNotFound is returned when a node ID is not configured.
var ErrNodeNotFound = errors.New("node not found")

// ErrCycle is returned when the connections do not form a DAG.
var ErrCycle = errors.New("graph contains a cycle")

// ErrUnknownAction is returned when an action envelope names no known action.
var ErrUnknownAction = errors.New("unknown action")

// ErrValidationFailed is returned when a node cannot run because of validation errors.
var ErrValidationFailed = errors.New("node validation failed")

// ErrNoExecutor is returned when no executor handles a node kind.
var ErrNoExecutor = errors.New("no executor for node kind")
