package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/cardgpt/internal/client/coordinator"
	"github.com/dmitrijs2005/cardgpt/internal/client/models"
	"github.com/dmitrijs2005/cardgpt/internal/filex"
)

// savedPreview is how many pairs the saved listing shows per set.
const savedPreview = 3

// Save stores the last generation under the given name.
func (a *App) Save(ctx context.Context, args []string) error {
	name := strings.TrimSpace(strings.Join(args, " "))
	if name == "" {
		return usageError("save <name>")
	}

	id, err := a.coord.Save(ctx, name)
	if err != nil {
		return err
	}
	a.success("%s (id %s)", a.coord.Notice(), id)
	return nil
}

// Download writes the PDF of the last generation to args[0] or to the
// server-suggested filename.
func (a *App) Download(ctx context.Context, args []string) error {
	art, err := a.coord.DownloadCurrent(ctx)
	if err != nil {
		return err
	}
	return a.writeArtifact(art, args)
}

func (a *App) Saved(ctx context.Context) error {
	if err := a.coord.Show(ctx, coordinator.PanelSaved); err != nil {
		return err
	}
	if a.coord.Panel() == coordinator.PanelAuth {
		a.say("%s", a.coord.Notice())
		return nil
	}
	a.printSaved()
	return nil
}

func (a *App) printSaved() {
	sets := a.coord.Saved()
	if len(sets) == 0 {
		a.say("You have no saved card sets yet.")
		return
	}

	a.heading("Saved card sets")
	for _, s := range sets {
		created := ""
		if !s.CreatedAt.IsZero() {
			created = ", " + s.CreatedAt.Format("2006-01-02 15:04")
		}
		a.say("[%s] %s (%d pairs%s)", s.ID, s.DisplayName, s.NumPairs, created)
		a.printPreview(s.Pairs, savedPreview)
	}
}

// Delete removes a saved set after the user confirms.
func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("delete <id>")
	}
	id := models.CardID(args[0])

	ok, err := confirm(a.reader, fmt.Sprintf("Delete card set %s?", id), a.out)
	if err != nil {
		return err
	}
	if err := a.coord.DeleteSaved(ctx, id, ok); err != nil {
		return err
	}
	a.success("%s", a.coord.Notice())
	return nil
}

// Fetch writes the PDF of a saved set.
func (a *App) Fetch(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return usageError("fetch <id> [file]")
	}

	art, err := a.coord.DownloadSaved(ctx, models.CardID(args[0]))
	if err != nil {
		return err
	}
	return a.writeArtifact(art, args[1:])
}

func (a *App) Community(ctx context.Context) error {
	if err := a.coord.Show(ctx, coordinator.PanelCommunity); err != nil {
		return err
	}

	list := a.coord.Community()
	if len(list) == 0 {
		a.say("Nobody has shared a card set yet.")
		return nil
	}

	a.heading("Community card sets")
	for _, l := range list {
		if l.Owner != "" {
			a.say("%s by %s (%d pairs)", l.Name, l.Owner, l.Total)
		} else {
			a.say("%s (%d pairs)", l.Name, l.Total)
		}
		for _, p := range l.Preview {
			a.say("    %s", p)
		}
		if label := l.MoreLabel(); label != "" {
			a.muted("    %s", label)
		}
	}
	return nil
}

func (a *App) printPreview(pairs []models.WordPair, limit int) {
	for i, p := range pairs {
		if i == limit {
			a.muted("    ... and %d more", len(pairs)-limit)
			return
		}
		a.say("    %s", p)
	}
}

// writeArtifact stores art at args[0], falling back to the base of the
// artifact name in the working directory.
func (a *App) writeArtifact(art *models.Artifact, args []string) error {
	path := ""
	if art.Filename != "" {
		path = filepath.Base(art.Filename)
	}
	if len(args) > 0 && args[0] != "" {
		path = args[0]
	}
	if path == "" {
		path = "cards.pdf"
	}

	if err := filex.EnsureParentDir(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, art.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	a.success("Saved %s (%d bytes).", path, len(art.Data))
	return nil
}
