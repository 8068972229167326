package entity

import "strings"

// AttachmentMeta describes one downloaded file inside a scratch directory.
type AttachmentMeta struct {
	URL         string
	Path        string
	Filename    string
	ContentType string
	Size        int64
}

// ResolveResult is what the attachment resolver hands back for one send attempt.
// ScratchDir is owned by the caller and is empty when nothing was created.
type ResolveResult struct {
	Items      []AttachmentMeta
	Errors     []string
	ScratchDir string
}

// Note joins the attachment errors into the text stored on the recipient.
func (r ResolveResult) Note() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return "attachment errors: " + strings.Join(r.Errors, "; ")
}
