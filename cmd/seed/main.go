// Command seed fills a development database with demo content.
package main

import (
	"flag"
	"log"

	"meeplehall/internal/config"
	"meeplehall/internal/database"
	"meeplehall/internal/seed"
)

func main() {
	counts := seed.DefaultCounts
	flag.IntVar(&counts.Users, "users", counts.Users, "Number of users to create")
	flag.IntVar(&counts.PostsPerUser, "posts", counts.PostsPerUser, "Posts per user")
	flag.IntVar(&counts.CommentsPerPost, "comments", counts.CommentsPerPost, "Comments per post")
	flag.IntVar(&counts.ListingsPerUser, "listings", counts.ListingsPerUser, "Marketplace listings per user")
	flag.IntVar(&counts.FollowsPerUser, "follows", counts.FollowsPerUser, "Follows per user")
	shouldClean := flag.Bool("clean", false, "Clear user content before seeding")
	catalogOnly := flag.Bool("catalog-only", false, "Only load the game catalog")
	fakeSeed := flag.Int64("seed", 0, "Random seed for reproducible data")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if *catalogOnly {
		games, err := seed.Games(db)
		if err != nil {
			log.Fatalf("Catalog seeding failed: %v", err)
		}
		log.Printf("Loaded %d games", len(games))
		return
	}

	s := seed.NewSeeder(db, seed.Options{Seed: *fakeSeed})
	if *shouldClean {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	res, err := s.Run(counts)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Seeded %d users, %d games, %d posts, %d listings", res.Users, res.Games, res.Posts, res.Listings)
	log.Printf("All seeded users have the password: %s (admin login: admin@example.com)", seed.DefaultPassword)
}
