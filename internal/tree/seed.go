package tree

import (
	"context"

	"github.com/ARDEV04/Personal-file-manager/internal/models"
	"github.com/jackc/pgx/v5"
)

type seedEntry struct {
	name     string
	size     int64
	mimeType string
	children []seedEntry // non-nil marks a folder
}

func folder(name string, children ...seedEntry) seedEntry {
	if children == nil {
		children = []seedEntry{}
	}
	return seedEntry{name: name, children: children}
}

func file(name string, size int64, mimeType string) seedEntry {
	return seedEntry{name: name, size: size, mimeType: mimeType}
}

var demoTree = []seedEntry{
	folder("Documents",
		folder("Work",
			file("report.docx", 52428, "application/vnd.openxmlformats-officedocument.wordprocessingml.document"),
			file("meeting-notes.txt", 2048, "text/plain"),
		),
		folder("Personal",
			file("budget.xlsx", 35840, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"),
		),
		file("resume.pdf", 245760, "application/pdf"),
		file("notes.txt", 1024, "text/plain"),
	),
	folder("Images",
		folder("Vacation",
			file("beach.jpg", 3145728, "image/jpeg"),
			file("mountain.jpg", 2621440, "image/jpeg"),
			file("sunset.jpg", 1835008, "image/jpeg"),
		),
		folder("Screenshots",
			file("screenshot-01.png", 524288, "image/png"),
			file("screenshot-02.png", 614400, "image/png"),
		),
		file("profile.jpg", 102400, "image/jpeg"),
		file("background.png", 2097152, "image/png"),
	),
	folder("Projects",
		folder("web-app",
			file("index.html", 2048, "text/html"),
			file("styles.css", 8192, "text/css"),
			file("app.js", 16384, "application/javascript"),
		),
		folder("mobile-app",
			file("App.tsx", 12288, "text/typescript"),
			file("package.json", 1024, "application/json"),
		),
		file("README.md", 4096, "text/markdown"),
	),
	folder("Downloads",
		file("installer.exe", 52428800, "application/octet-stream"),
		file("archive.zip", 10485760, "application/zip"),
		file("video.mp4", 104857600, "video/mp4"),
		file("music.mp3", 5242880, "audio/mpeg"),
		file("presentation.pptx", 3145728, "application/vnd.openxmlformats-officedocument.presentationml.presentation"),
	),
}

// SeedDemo fills an empty tree with sample folders and files. It reports whether
// anything was written.
func (s *Store) SeedDemo(ctx context.Context) (bool, error) {
	seeded := false
	err := s.inTx(ctx, "seed", func(tx pgx.Tx) error {
		seeded = false
		var count int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM files`).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		if err := seedLevel(ctx, tx, nil, demoTree); err != nil {
			return err
		}
		seeded = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if seeded {
		s.log.Info().Msg("database seeded with demo data")
	}
	return seeded, nil
}

func seedLevel(ctx context.Context, tx pgx.Tx, parent *models.FileNode, entries []seedEntry) error {
	for _, e := range entries {
		node := models.FileNode{Name: e.name, Kind: models.KindFile}
		if parent != nil {
			node.ParentID = &parent.ID
		}
		if e.children != nil {
			node.Kind = models.KindFolder
		} else {
			size, mime := e.size, e.mimeType
			node.Size, node.MimeType = &size, &mime
		}

		created, err := insertNode(ctx, tx, node)
		if err != nil {
			return err
		}
		if e.children != nil {
			if err := seedLevel(ctx, tx, created, e.children); err != nil {
				return err
			}
		}
	}
	return nil
}
