package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/farmmarket/internal/client/models"
)

// storeErr turns the store's recorded error into an error value.
func storeErr(msg string) error {
	if msg == "" {
		return nil
	}
	return errors.New(msg)
}

// Products fetches the marketplace, optionally for one category, and prints
// it through the local filter.
func (a *App) Products(ctx context.Context, category string) error {
	a.products.FetchAll(ctx, models.FetchParams{Category: category})
	if err := storeErr(a.products.Err()); err != nil {
		return err
	}
	if f := a.products.Filter(); f.Category != "" {
		a.println("(filtered by category", f.Category+")")
	}
	writeProducts(a.out, a.products.FilteredProducts())
	return nil
}

// Filter sets or clears the local category filter. No request is made.
func (a *App) Filter(ctx context.Context, category string) error {
	if category == "clear" {
		a.products.ClearFilters()
	} else {
		a.products.SetFilters(models.FilterPatch{Category: &category})
	}
	writeProducts(a.out, a.products.FilteredProducts())
	return nil
}

func (a *App) Show(ctx context.Context, id string) error {
	a.products.FetchOne(ctx, id)
	if err := storeErr(a.products.Err()); err != nil {
		return err
	}
	writeProduct(a.out, a.products.Current())
	return nil
}

// Mine lists the signed-in farmer's own products.
func (a *App) Mine(ctx context.Context) error {
	if err := a.requireDashboard(); err != nil {
		return err
	}
	writeProducts(a.out, a.products.FetchMine(ctx, a.session.User().ID))
	return nil
}

func (a *App) optionalText(prompt string) (*string, error) {
	s, err := getSimpleText(a.reader, prompt, a.out)
	if err != nil || s == "" {
		return nil, err
	}
	return &s, nil
}

func (a *App) optionalFloat(prompt string) (*float64, error) {
	v, ok, err := GetFloat(a.reader, prompt, a.out)
	if err != nil || !ok {
		return nil, err
	}
	return &v, nil
}

// Add creates a listing and optionally uploads its picture.
func (a *App) Add(ctx context.Context) error {
	if err := a.requireDashboard(); err != nil {
		return err
	}

	var d models.ProductDraft
	var err error
	if d.Name, err = getSimpleText(a.reader, "Enter product name", a.out); err != nil {
		return err
	}
	if d.Category, err = getSimpleText(a.reader, "Enter category", a.out); err != nil {
		return err
	}
	if d.PricePerKg, _, err = GetFloat(a.reader, "Enter price per kg", a.out); err != nil {
		return err
	}
	if d.QuantityAvailable, _, err = GetFloat(a.reader, "Enter quantity available (kg)", a.out); err != nil {
		return err
	}
	if d.Description, err = a.optionalText("Enter description (optional)"); err != nil {
		return err
	}
	image, err := a.optionalText("Enter image file path (optional)")
	if err != nil {
		return err
	}

	p, err := a.products.Create(ctx, d)
	if err != nil {
		return err
	}
	a.println("Created", p.ID)

	if image != nil {
		return a.Upload(ctx, p.ID, *image)
	}
	return nil
}

// Edit prompts for every field; an empty answer keeps the current value.
func (a *App) Edit(ctx context.Context, id string) error {
	if err := a.requireDashboard(); err != nil {
		return err
	}

	var patch models.ProductPatch
	var err error
	if patch.Name, err = a.optionalText("New name (empty to keep)"); err != nil {
		return err
	}
	if patch.Category, err = a.optionalText("New category (empty to keep)"); err != nil {
		return err
	}
	if patch.PricePerKg, err = a.optionalFloat("New price per kg (empty to keep)"); err != nil {
		return err
	}
	if patch.QuantityAvailable, err = a.optionalFloat("New quantity (empty to keep)"); err != nil {
		return err
	}
	if patch.Description, err = a.optionalText("New description (empty to keep)"); err != nil {
		return err
	}

	p, err := a.products.Update(ctx, id, patch)
	if err != nil {
		return err
	}
	a.println("Updated", p.ID)
	return nil
}

func (a *App) Delete(ctx context.Context, id string) error {
	if err := a.requireDashboard(); err != nil {
		return err
	}
	if err := a.products.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	a.println("Deleted", id)
	return nil
}
