package share

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/relayonprem/control-plane/internal/store"
)

// FindShareForPath resolves a file path to the most specific share the
// principal may read: an exact doc match first, then the longest readable
// folder prefix. Returns ErrShareNotFound when nothing matches.
func (s *Service) FindShareForPath(ctx context.Context, principal *store.User, filePath, presentedPassword string) (*store.Share, error) {
	if doc, err := s.store.GetDocShareByPath(ctx, filePath); err == nil {
		ok, err := s.Authorize(ctx, AccessRequest{
			Principal:         principal,
			Share:             doc,
			Action:            ActionRead,
			PresentedPassword: presentedPassword,
		})
		if err != nil {
			return nil, err
		}
		if ok {
			return doc, nil
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("doc share lookup failed: %w", err)
	}

	folders, err := s.store.ListFolderShares(ctx)
	if err != nil {
		return nil, fmt.Errorf("folder share listing failed: %w", err)
	}

	var best *store.Share
	bestLen := -1
	for i := range folders {
		prefix := folderPrefix(folders[i].Path)
		if !strings.HasPrefix(filePath, prefix) {
			continue
		}
		if len(prefix) <= bestLen {
			continue
		}
		ok, err := s.Authorize(ctx, AccessRequest{
			Principal:         principal,
			Share:             &folders[i],
			Action:            ActionRead,
			PresentedPassword: presentedPassword,
		})
		if err != nil {
			return nil, err
		}
		if ok {
			best = &folders[i]
			bestLen = len(prefix)
		}
	}
	if best == nil {
		return nil, ErrShareNotFound
	}
	return best, nil
}
