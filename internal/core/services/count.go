package services

import (
	"fmt"
	"strconv"

	"github.com/Shelq27/NMedia-DZ2/internal/core/domain"
)

// FormatCount produit un libellé court ("1.2K", "3M").
// Toujours tronqué vers zéro : on n'affiche jamais plus que le compteur réel
// (999 ne devient pas "1.0K"). Calcul entier, indépendant de la locale.
func FormatCount(count int64) (string, error) {
	switch {
	case count < 0:
		return "", fmt.Errorf("%d: %w", count, domain.ErrNegativeCount)
	case count < 1_000:
		return strconv.FormatInt(count, 10), nil
	case count < 10_000:
		return withTenth(count/1_000, (count%1_000)/100, "K"), nil
	case count < 1_000_000:
		return strconv.FormatInt(count/1_000, 10) + "K", nil
	default:
		return withTenth(count/1_000_000, (count%1_000_000)/100_000, "M"), nil
	}
}

// withTenth omet la décimale nulle ("1K" et non "1.0K").
func withTenth(whole, tenth int64, suffix string) string {
	if tenth == 0 {
		return strconv.FormatInt(whole, 10) + suffix
	}
	return strconv.FormatInt(whole, 10) + "." + strconv.FormatInt(tenth, 10) + suffix
}
