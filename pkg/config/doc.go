// Package config holds the environment-driven configuration of the auth
// server. Each concern is a struct with cleanenv tags; Load reads an
// optional .env file and then the environment into Config.
//
//	cfg, err := config.Load(".env")
//	if err != nil {
//		log.Fatal(err)
//	}
//	pool, err := dbutils.NewDbPool(ctx, cfg.Database.ToDbConfig())
package config
