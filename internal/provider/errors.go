package provider

import "fmt"

// UnsupportedModelError reports a model identifier that maps to no family,
// or to a family with no configured adapter. It is fatal to the request and
// is returned before any remote call.
type UnsupportedModelError struct {
	Model  string
	Reason string
}

func (e *UnsupportedModelError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("unsupported model %q", e.Model)
	}
	return fmt.Sprintf("unsupported model %q: %s", e.Model, e.Reason)
}

// RemoteCallError wraps a failure reported by a backend's transport or API.
// Nothing in this module retries; the caller decides.
type RemoteCallError struct {
	Family Family
	Model  string
	Err    error
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("%s call for model %q failed: %v", e.Family, e.Model, e.Err)
}

func (e *RemoteCallError) Unwrap() error { return e.Err }

// MalformedResponseError reports a response envelope that did not match the
// family's extraction path. The text is never silently coerced to "".
type MalformedResponseError struct {
	Family Family
	Model  string
	Path   string // the extraction path that failed, e.g. "choices[0].message.content"
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s response for model %q has no %s: %v", e.Family, e.Model, e.Path, e.Err)
	}
	return fmt.Sprintf("%s response for model %q has no %s", e.Family, e.Model, e.Path)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
