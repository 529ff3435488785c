package models

import "io"

// Upload is a file handed to the storage service.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}
