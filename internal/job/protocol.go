package job

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MeKo-Tech/scanwarp/internal/geometry"
)

// Request is the wire form of a Job. url and op are accepted as aliases of
// sourceRef and operation.
type Request struct {
	ID        ID               `json:"id"`
	SourceRef string           `json:"sourceRef,omitempty"`
	URL       string           `json:"url,omitempty"`
	Name      string           `json:"name,omitempty"`
	Operation string           `json:"operation,omitempty"`
	Op        string           `json:"op,omitempty"`
	Points    []geometry.Point `json:"points,omitempty"`
	Data      []byte           `json:"data,omitempty"`
}

// Job converts the request, resolving aliases and the operation name.
func (r Request) Job() Job {
	ref := r.SourceRef
	if ref == "" {
		ref = r.URL
	}
	raw := r.Operation
	if raw == "" {
		raw = r.Op
	}
	op, _ := ParseOperation(raw)
	return Job{
		ID:           r.ID,
		SourceRef:    ref,
		Name:         r.Name,
		Operation:    op,
		RawOperation: raw,
		Points:       r.Points,
		Data:         r.Data,
	}
}

// DecodeRequest parses one JSON request.
func DecodeRequest(data []byte) (Job, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Job{}, fmt.Errorf("decode request: %w", err)
	}
	return req.Job(), nil
}

// Response is the wire form of a Result. Blob is base64 in JSON.
type Response struct {
	Tag       Tag              `json:"tag"`
	ID        ID               `json:"id"`
	SourceRef string           `json:"sourceRef,omitempty"`
	Name      string           `json:"name,omitempty"`
	MIME      string           `json:"mime,omitempty"`
	Blob      []byte           `json:"blob,omitempty"`
	Points    []geometry.Point `json:"points,omitempty"`
	Width     int              `json:"width,omitempty"`
	Height    int              `json:"height,omitempty"`
	Reason    string           `json:"reason,omitempty"`
}

// NewResponse flattens r for the wire.
func NewResponse(r Result) Response {
	switch v := r.(type) {
	case Done:
		return Response{Tag: TagDone, ID: v.ID, SourceRef: v.SourceRef, Name: v.Name}
	case DoneImage:
		return Response{Tag: TagDoneBlob, ID: v.ID, Name: v.Name, MIME: v.MIME, Blob: v.Blob}
	case Detected:
		return Response{Tag: TagDetected, ID: v.ID, Points: v.Points, Width: v.Width, Height: v.Height}
	case Failure:
		return Response{Tag: TagError, ID: v.ID, Reason: v.Reason}
	default:
		return Response{Tag: TagError, ID: r.JobID(), Reason: fmt.Sprintf("unknown result %T", r)}
	}
}

// Result rebuilds the typed Result.
func (r Response) Result() (Result, error) {
	switch r.Tag {
	case TagDone:
		return Done{ID: r.ID, SourceRef: r.SourceRef, Name: r.Name}, nil
	case TagDoneBlob:
		return DoneImage{ID: r.ID, Name: r.Name, MIME: r.MIME, Blob: r.Blob}, nil
	case TagDetected:
		if len(r.Points) != len(geometry.EdgeDescription{}) {
			return nil, fmt.Errorf("detected response with %d points", len(r.Points))
		}
		return Detected{ID: r.ID, Points: r.Points, Width: r.Width, Height: r.Height}, nil
	case TagError:
		return Failure{ID: r.ID, Reason: r.Reason}, nil
	case "":
		return nil, errors.New("response without tag")
	default:
		return nil, fmt.Errorf("unknown response tag %q", r.Tag)
	}
}

// EncodeResult marshals r as one JSON response.
func EncodeResult(r Result) ([]byte, error) {
	return json.Marshal(NewResponse(r))
}
