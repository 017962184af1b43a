package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"path/filepath"
	"time"

	"qrpass/entity"
	"qrpass/impl/auth"
	"qrpass/impl/core"
	"qrpass/impl/issuance"
	"qrpass/impl/ledger"
	"qrpass/impl/redemption"
	"qrpass/internal/config"
	"qrpass/internal/database"
	"qrpass/internal/directory"
	"qrpass/internal/http-server/api"
	"qrpass/internal/qrcodec"
	"qrpass/lib/logger"
	"qrpass/lib/sl"
	"qrpass/notify"
)

const logFileName = "qrpass.log"

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	lg := logger.SetupLogger(conf.Env, filepath.Join(*logPath, logFileName))
	lg.Info("starting qrpass", slog.String("config", *configPath), slog.String("env", conf.Env))

	if conf.Telegram.Enabled {
		bot, err := notify.NewTgBot(conf.Telegram.ApiKey, conf.Telegram.ChatId, lg)
		if err != nil {
			lg.Error("telegram notifier disabled", sl.Err(err))
		} else {
			lg = slog.New(logger.NewTelegramHandler(lg.Handler(), bot, slog.LevelWarn))
			lg.Info("telegram alerts enabled")
		}
	}

	mongo := database.NewMongoClient(conf)
	if mongo == nil {
		log.Fatal("mongo storage is required")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := mongo.EnsureIndexes(ctx); err != nil {
		cancel()
		log.Fatal("ensure indexes: ", err)
	}
	cancel()

	codec, err := qrcodec.New(conf.Token.Secret, conf.Token.Issuer)
	if err != nil {
		log.Fatal("qr codec: ", err)
	}

	var dir *directory.MySql
	if conf.Directory.Enabled {
		dir, err = directory.NewSQLClient(conf)
		if err != nil {
			log.Fatal("directory client: ", err)
		}
		defer dir.Close()
		lg.Info("scope directory connected")
	}

	policy := issuance.Policy{
		DefaultValidityHours: conf.Token.DefaultValidityHours,
		SingleActivePerScope: conf.Token.SingleActivePerScope,
		DuplicatePolicy:      entityDuplicatePolicy(conf.Token.DuplicatePolicy),
	}

	var issuerDir issuance.Directory
	if dir != nil {
		issuerDir = dir
	}
	iss := issuance.New(mongo, codec, issuerDir, policy, lg)
	eng := redemption.New(mongo, codec, lg)
	led := ledger.New(mongo, lg)

	handler := core.New(iss, eng, led, codec, lg)
	handler.SetAuthService(authService(mongo))
	if dir != nil {
		handler.SetDirectory(dir)
	}

	if err := api.New(conf, lg, handler); err != nil {
		lg.Error("api server stopped", sl.Err(err))
	}
}

func authService(db auth.Database) *auth.Auth {
	return auth.New(db)
}

func entityDuplicatePolicy(s string) entity.DuplicatePolicy {
	p := entity.DuplicatePolicy(s)
	if !p.Valid() {
		return entity.DuplicatePerToken
	}
	return p
}
