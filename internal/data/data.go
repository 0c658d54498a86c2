package data

import (
	"context"
	"strings"
	"time"

	"movietrends/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewData,
	NewDatasetRepo,
	NewResultSinks,
)

// Data encapsulates the optional database, document store and cache
// connections. Only the backends the configuration asks for are opened.
type Data struct {
	db    *gorm.DB
	mongo *mongo.Database
	rdb   *redis.Client
	log   *log.Helper
}

// NewData opens the connections required by the configured input driver and
// outputs.
func NewData(c *conf.Data, in *conf.Input, out *conf.Output, logger log.Logger) (*Data, func(), error) {
	l := log.NewHelper(logger)
	data := &Data{log: l}
	var closers []func()

	cleanup := func() {
		l.Info("closing data resources")
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch in.Driver {
	case conf.DriverPostgres:
		db, err := gorm.Open(postgres.Open(c.Database.Source), &gorm.Config{})
		if err != nil {
			l.Errorf("failed to connect to database: %v", err)
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			l.Errorf("failed to get database instance: %v", err)
			return nil, nil, err
		}
		sqlDB.SetMaxIdleConns(2)
		sqlDB.SetMaxOpenConns(4)
		sqlDB.SetConnMaxLifetime(time.Hour)
		closers = append(closers, func() {
			if err := sqlDB.Close(); err != nil {
				l.Errorf("failed to close database: %v", err)
			}
		})
		data.db = db
		l.Info("database connected successfully")

	case conf.DriverMongo:
		opt := options.Client().ApplyURI(c.Mongo.URI).SetTimeout(c.Mongo.Timeout)
		if strings.HasPrefix(c.Mongo.URI, "mongodb+srv") {
			opt.SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1))
		}
		client, err := mongo.Connect(opt)
		if err != nil {
			l.Errorf("failed to connect to mongodb: %v", err)
			cleanup()
			return nil, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), c.Mongo.Timeout)
		defer cancel()
		if err := client.Ping(ctx, nil); err != nil {
			l.Errorf("failed to ping mongodb: %v", err)
			_ = client.Disconnect(ctx)
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(ctx); err != nil {
				l.Errorf("failed to close mongodb: %v", err)
			}
		})
		data.mongo = client.Database(c.Mongo.Database)
		l.Info("mongodb connected successfully")
	}

	if out.Redis {
		rdb := redis.NewClient(&redis.Options{
			Addr:         c.Redis.Addr,
			ReadTimeout:  c.Redis.ReadTimeout,
			WriteTimeout: c.Redis.WriteTimeout,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			// Leaderboards are optional, continue without them
			l.Warnf("failed to connect to redis: %v", err)
			_ = rdb.Close()
		} else {
			closers = append(closers, func() {
				if err := rdb.Close(); err != nil {
					l.Errorf("failed to close redis: %v", err)
				}
			})
			data.rdb = rdb
			l.Info("redis connected successfully")
		}
	}

	return data, cleanup, nil
}
