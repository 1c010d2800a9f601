package models

import "time"

// File медиафайл, проиндексированный из канала.
type File struct {
	ID            int64
	FileID        string // Telegram file_id
	FileName      string
	FileType      string // document, video, audio
	FileSize      int64
	MimeType      *string
	ChannelID     int64
	MessageID     int
	CustomName    *string
	Caption       *string
	DownloadCount int
	IndexedAt     time.Time
}

// DisplayName возвращает пользовательское имя файла, если оно задано.
func (f *File) DisplayName() string {
	if f.CustomName != nil && *f.CustomName != "" {
		return *f.CustomName
	}
	if f.FileName == "" {
		return "Unknown"
	}
	return f.FileName
}
