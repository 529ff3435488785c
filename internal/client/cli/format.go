package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dmitrijs2005/farmmarket/internal/client/models"
)

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

func writeProducts(w io.Writer, products []models.Product) {
	if len(products) == 0 {
		fmt.Fprintln(w, "No products")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE/KG\tQTY\tFARMER")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%.1f\t%s\n",
			p.ID, p.Name, p.Category, p.PricePerKg, p.QuantityAvailable, p.FarmerName())
	}
	_ = tw.Flush()
}

func writeProduct(w io.Writer, p *models.Product) {
	fmt.Fprintf(w, "%s (%s)\n", p.Name, p.Category)
	fmt.Fprintf(w, "  id:        %s\n", p.ID)
	fmt.Fprintf(w, "  price/kg:  %.2f\n", p.PricePerKg)
	fmt.Fprintf(w, "  available: %.1f kg\n", p.QuantityAvailable)
	if p.Description != nil {
		fmt.Fprintf(w, "  about:     %s\n", *p.Description)
	}
	if p.ImageURL != nil {
		fmt.Fprintf(w, "  image:     %s\n", *p.ImageURL)
	}
	if p.Farmer != nil {
		fmt.Fprintf(w, "  farmer:    %s", p.FarmerName())
		if loc := p.FarmerLocation(); loc != "" {
			fmt.Fprintf(w, ", %s", loc)
		}
		if phone := p.FarmerPhone(); phone != "" {
			fmt.Fprintf(w, ", tel. %s", phone)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "  listed:    %s\n", p.CreatedAt.Format("2006-01-02"))
}

func writePrices(w io.Writer, prices []models.MarketPrice) {
	if len(prices) == 0 {
		fmt.Fprintln(w, "No prices")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tCROP\tMARKET\tPRICE")
	for _, p := range prices {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\n", p.DateRecorded.Format("2006-01-02"), p.CropName, p.MarketLocation, p.Price)
	}
	_ = tw.Flush()
}
