// Package store keeps a status record for every watermark-removal request so
// clients can look a request up after the HTTP response has been sent.
//
// Three backends implement RequestStore: an in-process map for the local
// server, DynamoDB for the Lambda deployment (single-table design, PK
// REQUEST#{id}, SK META) and Redis for shared multi-instance deployments.
// Every backend expires records after RequestTTL.
package store

import (
	"context"
	"time"
)

// RequestTTL is how long a request record is kept. It matches the artifact
// bucket lifecycle policy.
const RequestTTL = 24 * time.Hour

// Request statuses.
const (
	StatusProcessing = "processing"
	StatusComplete   = "complete"
	StatusFailed     = "failed"
)

// Request is the record of one removal request.
// The ID field is derived from the DynamoDB partition key.
type Request struct {
	ID           string    `json:"id" dynamodbav:"-"`
	Status       string    `json:"status" dynamodbav:"status"`
	Attempt      int       `json:"attempt,omitempty" dynamodbav:"attempt,omitempty"`
	Attempts     int       `json:"attempts,omitempty" dynamodbav:"attempts,omitempty"`
	Instruction  string    `json:"instruction,omitempty" dynamodbav:"instruction,omitempty"`
	OutputName   string    `json:"outputName,omitempty" dynamodbav:"outputName,omitempty"`
	OutputMIME   string    `json:"outputMimeType,omitempty" dynamodbav:"outputMimeType,omitempty"`
	ErrorKind    string    `json:"errorKind,omitempty" dynamodbav:"errorKind,omitempty"`
	Error        string    `json:"error,omitempty" dynamodbav:"error,omitempty"`
	SourceFormat string    `json:"sourceFormat,omitempty" dynamodbav:"sourceFormat,omitempty"`
	Width        int       `json:"width,omitempty" dynamodbav:"width,omitempty"`
	Height       int       `json:"height,omitempty" dynamodbav:"height,omitempty"`
	CreatedAt    time.Time `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" dynamodbav:"updatedAt"`
}

// RequestStore persists request records. Implementations are safe for
// concurrent use. GetRequest returns (nil, nil) for an unknown ID and
// PutRequest replaces the whole record.
type RequestStore interface {
	PutRequest(ctx context.Context, req *Request) error
	GetRequest(ctx context.Context, id string) (*Request, error)
}

// Nop discards every record. It is used when request records are disabled.
type Nop struct{}

func (Nop) PutRequest(context.Context, *Request) error { return nil }

func (Nop) GetRequest(context.Context, string) (*Request, error) { return nil, nil }
