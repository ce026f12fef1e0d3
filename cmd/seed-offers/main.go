package main

import (
	"log"
	"time"

	"online-storefront/internal/config"
	"online-storefront/internal/database"
	"online-storefront/internal/models"
	"online-storefront/internal/repositories"
)

// Seeds a handful of sample offers for local development
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	offerRepo := repositories.NewOfferRepository(db.DB)

	now := time.Now()
	minPurchase := 10000 // 100.00
	maxDiscount := 5000  // 50.00

	offers := []*models.Offer{
		{
			Name:               "Welcome 10% Off",
			DiscountPercentage: 10,
			StartDate:          now,
			EndDate:            now.AddDate(0, 3, 0),
			Active:             true,
			UsageLimit:         models.UnlimitedUsage,
		},
		{
			Name:               "Big Spender Half Price",
			DiscountPercentage: 50,
			MinPurchaseAmount:  &minPurchase,
			MaxDiscountAmount:  &maxDiscount,
			StartDate:          now,
			EndDate:            now.AddDate(0, 1, 0),
			Active:             true,
			UsageLimit:         100,
		},
		{
			Name:               "Flash Sale 25%",
			DiscountPercentage: 25,
			StartDate:          now,
			EndDate:            now.AddDate(0, 0, 7),
			Active:             true,
			UsageLimit:         500,
		},
	}

	for _, offer := range offers {
		created, err := offerRepo.Create(offer)
		if err != nil {
			log.Printf("Failed to seed offer %q: %v", offer.Name, err)
			continue
		}
		log.Printf("Seeded offer %d: %s (%d%%)", created.ID, created.Name, created.DiscountPercentage)
	}

	log.Println("Offer seeding complete")
}
