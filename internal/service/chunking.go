package service

import (
	"strings"
)

// ChunkConfig controls how document text is split before embedding.
type ChunkConfig struct {
	// WindowSize is the chunk length in runes.
	WindowSize int
	// Overlap is how many runes adjacent chunks share; must be smaller
	// than WindowSize so every chunk carries new content.
	Overlap int
	// MaxChunks bounds runaway documents. Zero means no cap.
	MaxChunks int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		WindowSize: 500,
		Overlap:    100,
		MaxChunks:  2000,
	}
}

// chunkText splits text into fixed-size sliding windows. Adjacent windows
// overlap by cfg.Overlap runes so context survives the boundary; the last
// window may be shorter than WindowSize. Whitespace-only windows are
// dropped.
func chunkText(text string, cfg ChunkConfig) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	if cfg.WindowSize <= 0 || cfg.Overlap < 0 || cfg.Overlap >= cfg.WindowSize {
		cfg = DefaultChunkConfig()
	}

	runes := []rune(clean)
	if len(runes) <= cfg.WindowSize {
		return []string{clean}
	}

	stride := cfg.WindowSize - cfg.Overlap
	chunks := make([]string, 0, 1+(len(runes)-1)/stride)

	for start := 0; start < len(runes); start += stride {
		if cfg.MaxChunks > 0 && len(chunks) >= cfg.MaxChunks {
			break
		}

		end := start + cfg.WindowSize
		if end > len(runes) {
			end = len(runes)
		}

		if window := string(runes[start:end]); strings.TrimSpace(window) != "" {
			chunks = append(chunks, window)
		}

		if end == len(runes) {
			break
		}
	}

	return chunks
}
