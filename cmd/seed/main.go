package main

import (
	"context"
	"flag"

	"github.com/sirupsen/logrus"

	"github.com/safar/stockbill/internal/config"
	"github.com/safar/stockbill/internal/database"
	"github.com/safar/stockbill/internal/models"
	"github.com/safar/stockbill/internal/mongostore"
	"github.com/safar/stockbill/internal/store"
)

type productCreator interface {
	CreateProduct(ctx context.Context, p models.Product) (*models.Product, error)
}

func main() {
	file := flag.String("file", "cmd/seed/catalog.example.yaml", "YAML catalog to load")
	flag.Parse()

	log := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}

	products, err := loadCatalog(*file)
	if err != nil {
		log.WithError(err).Fatal("load catalog")
	}

	ctx := context.Background()

	var catalog productCreator
	switch cfg.Store.Driver {
	case config.DriverMongo:
		ms, err := mongostore.Connect(ctx, cfg.Store.MongoURI, cfg.Store.MongoDatabase, log)
		if err != nil {
			log.WithError(err).Fatal("connect to mongo")
		}
		defer ms.Close(ctx)
		catalog = ms.Catalog()
	default:
		db, err := database.NewConnection(ctx, &cfg.Database, log)
		if err != nil {
			log.WithError(err).Fatal("connect to database")
		}
		defer db.Close()
		catalog = store.NewCatalog(db, cfg.Database.URL, log)
	}

	created := 0
	for _, p := range products {
		product, err := catalog.CreateProduct(ctx, p)
		if err != nil {
			log.WithField("name", p.Name).WithError(err).Error("create product")
			continue
		}
		created++
		log.WithFields(logrus.Fields{
			"id":       product.ID,
			"name":     product.Name,
			"quantity": product.Quantity,
		}).Info("product created")
	}

	log.WithFields(logrus.Fields{
		"created": created,
		"total":   len(products),
		"driver":  cfg.Store.Driver,
	}).Info("seed complete")
}
