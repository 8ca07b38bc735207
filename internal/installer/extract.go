package installer

import (
	"archive/tar"
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// unpackArchive extracts a downloaded bundle into dest, auto-detecting the
// archive format from content (zip, tar.gz, tar.zst, plain tar).
func unpackArchive(ctx context.Context, archivePath, dest string) error {
	mtype, err := mimetype.DetectFile(archivePath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}

	switch {
	case mtype.Is("application/zip"):
		return unpackZip(ctx, archivePath, dest)
	case mtype.Is("application/gzip"):
		return unpackTar(ctx, archivePath, dest, "gzip")
	case mtype.Is("application/zstd"):
		return unpackTar(ctx, archivePath, dest, "zstd")
	case mtype.Is("application/x-tar"):
		return unpackTar(ctx, archivePath, dest, "")
	default:
		return fmt.Errorf("%w: unsupported archive type %s", ErrInvalidArchive, mtype.String())
	}
}

func unpackZip(ctx context.Context, archivePath, dest string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		destPath, ok := securePath(dest, file.Name)
		if !ok {
			continue
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return err
		}
		src, err := file.Open()
		if err != nil {
			return err
		}
		if err := writeFile(destPath, src); err != nil {
			src.Close()
			return err
		}
		src.Close()
	}
	return nil
}

func unpackTar(ctx context.Context, archivePath, dest, compression string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	var input io.Reader = f
	switch compression {
	case "gzip":
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidArchive, err)
		}
		defer gz.Close()
		input = gz
	case "zstd":
		zr, err := zstd.NewReader(f)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidArchive, err)
		}
		defer zr.Close()
		input = zr
	}

	tr := tar.NewReader(input)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidArchive, err)
		}

		destPath, ok := securePath(dest, header.Name)
		if !ok {
			continue
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
				return err
			}
			if err := writeFile(destPath, tr); err != nil {
				return err
			}
		}
	}
}

// securePath joins name under dest, rejecting path traversal.
func securePath(dest, name string) (string, bool) {
	destPath := filepath.Join(dest, name)
	if !strings.HasPrefix(destPath, filepath.Clean(dest)+string(os.PathSeparator)) {
		return "", false
	}
	return destPath, true
}

func writeFile(path string, src io.Reader) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
