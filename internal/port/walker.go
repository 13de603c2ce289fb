package port

import "context"

type FileWalker interface {
	Walk(ctx context.Context, root string) ([]FileInfo, error)
}

type FileInfo struct {
	Path    string
	RelPath string
	ModTime int64
	Size    int64
}
