// Package job routes rectification jobs and turns every outcome, including
// failures, into exactly one Result.
package job

import (
	"github.com/MeKo-Tech/scanwarp/internal/geometry"
)

// Job is one unit of work. Points is only read by OpWarp; Data, when set,
// replaces fetching SourceRef.
type Job struct {
	ID        ID
	SourceRef string
	Name      string
	Operation Operation
	// RawOperation is the name as received, kept for logs.
	RawOperation string
	Points       []geometry.Point
	Data         []byte
}

// Tag names a Result variant on the wire.
type Tag string

const (
	TagDone     Tag = "done"
	TagDoneBlob Tag = "doneBlob"
	TagDetected Tag = "detected"
	TagError    Tag = "error"
)

// Result is one of Done, DoneImage, Detected or Failure.
type Result interface {
	JobID() ID
	Tag() Tag
	isResult()
}

// Done means the job finished without producing an image.
type Done struct {
	ID        ID
	SourceRef string
	Name      string
}

// DoneImage carries an encoded output image.
type DoneImage struct {
	ID   ID
	Name string
	MIME string
	Blob []byte
}

// Detected carries corner detection output in tl,tr,br,bl,tm,rm,bm,lm order.
type Detected struct {
	ID     ID
	Points []geometry.Point
	Width  int
	Height int
}

// Failure reports an unexpected error.
type Failure struct {
	ID     ID
	Reason string
}

func (r Done) JobID() ID      { return r.ID }
func (r DoneImage) JobID() ID { return r.ID }
func (r Detected) JobID() ID  { return r.ID }
func (r Failure) JobID() ID   { return r.ID }

func (Done) Tag() Tag      { return TagDone }
func (DoneImage) Tag() Tag { return TagDoneBlob }
func (Detected) Tag() Tag  { return TagDetected }
func (Failure) Tag() Tag   { return TagError }

func (Done) isResult()      {}
func (DoneImage) isResult() {}
func (Detected) isResult()  {}
func (Failure) isResult()   {}
