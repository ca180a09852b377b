package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	eduflow "github.com/deutschvfx-create/EduFlow-2026-Platform-sub000"
	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/internal/config"
	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/internal/logging"
	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/internal/utils"
	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/card"
	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/ingest"
	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/store"
	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/store/firestore"
	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/types"
)

func main() {
	var configPath, in, outDir string
	var zoom, rotation, cx, cy float64
	var locate, url, model string
	var ext string
	var quality int
	var debug bool

	var makeCard, printCard bool
	var role, id, first, last, birth, gender, status, orgName, origin, printer string
	var project, credentials string

	flag.StringVar(&configPath, "config", "", "JSON config file (defaults, .env and EDUFLOW_* variables apply without it)")
	flag.StringVar(&in, "in", "", "input photo (jpg/png/gif/webp/bmp/tiff/heic)")
	flag.StringVar(&outDir, "out", "", "output directory (default from config)")

	flag.Float64Var(&zoom, "zoom", 1, "zoom factor (1..3)")
	flag.Float64Var(&rotation, "rotation", 0, "clockwise rotation in degrees (-180..180)")
	flag.Float64Var(&cx, "cx", -1, "crop center x in [0,1]; negative keeps the located center")
	flag.Float64Var(&cy, "cy", -1, "crop center y in [0,1]; negative keeps the located center")

	flag.StringVar(&locate, "locate", "", "face locator: none|saliency|ollama|llamacpp")
	flag.StringVar(&url, "url", "", "vision model server URL for ollama or llamacpp")
	flag.StringVar(&model, "model", "", "vision model name")

	flag.StringVar(&ext, "ext", "", "output format: jpg|png|webp")
	flag.IntVar(&quality, "quality", 0, "JPEG/WebP quality (1-100)")
	flag.BoolVar(&debug, "debug", false, "debug logging and a crop preview image")

	flag.BoolVar(&makeCard, "card", false, "also export the passport card PNG")
	flag.BoolVar(&printCard, "print", false, "send the passport card to the printer")
	flag.StringVar(&printer, "printer", "", "lp destination (default from config)")
	flag.StringVar(&role, "role", "student", "profile role: student|teacher")
	flag.StringVar(&id, "id", "", "profile id")
	flag.StringVar(&first, "first", "", "first name")
	flag.StringVar(&last, "last", "", "last name")
	flag.StringVar(&birth, "birth", "", "birth date (YYYY-MM-DD)")
	flag.StringVar(&gender, "gender", "", "gender")
	flag.StringVar(&status, "status", "", "profile status")
	flag.StringVar(&orgName, "org", "", "organization name printed on the card")
	flag.StringVar(&origin, "origin", "", "origin of the verification link")

	flag.StringVar(&project, "firestore-project", "", "save the photo to this Firestore project")
	flag.StringVar(&credentials, "credentials", "", "service account JSON for Firestore")

	flag.Parse()
	if in == "" || id == "" {
		log.Fatalf("usage: %s -in photo.jpg -id PROFILE_ID [-role student|teacher] [-zoom 1.5] [-rotation 15] [-card -first NAME -last NAME]", filepath.Base(os.Args[0]))
	}
	if !utils.FileExists(in) {
		log.Fatalf("input %s does not exist", in)
	}
	if !utils.IsImageFile(in) {
		log.Fatalf("input %s is not a supported photo (%s)", in, ingest.AcceptedTypes())
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg, flagOverrides{
		outDir: outDir, locate: locate, url: url, model: model, ext: ext, quality: quality,
		debug: debug, orgName: orgName, origin: origin, printer: printer,
		project: project, credentials: credentials,
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid options: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	saver, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		logger.Fatal("failed to open profile store", zap.Error(err))
	}
	defer closeStore()

	editor, err := eduflow.New(cfg, saver, logger)
	if err != nil {
		logger.Fatal("failed to create editor", zap.Error(err))
	}

	profile := types.Profile{
		ID:        id,
		Role:      types.Role(strings.ToLower(role)),
		FirstName: first,
		LastName:  last,
		Gender:    gender,
		Status:    status,
	}
	if birth != "" {
		t, err := time.Parse(time.DateOnly, birth)
		if err != nil {
			logger.Fatal("invalid birth date", zap.String("birth", birth), zap.Error(err))
		}
		profile.BirthDate = &t
	}
	org := types.Organization{Name: cfg.Card.OrganizationName, Origin: cfg.Card.Origin}

	loader := ingest.NewWithConfig(ingest.Config{
		MaxUploadSize:    cfg.Ingest.MaxUploadSize,
		ConvertQuality:   cfg.Ingest.ConvertQuality,
		SupportedFormats: cfg.Ingest.SupportedFormats,
		MinImageSize:     cfg.Ingest.MinImageSize,
	})
	upload, err := loader.LoadFile(in)
	if err != nil {
		logger.Fatal("failed to read photo", zap.Error(err))
	}
	sess, err := editor.Open(ctx, org, profile.Ref(), upload)
	if err != nil {
		logger.Fatal("failed to open photo", zap.Error(err))
	}

	if cx >= 0 && cy >= 0 {
		if _, err := sess.SetCenter(types.Point{X: cx, Y: cy}); err != nil {
			logger.Fatal("set center", zap.Error(err))
		}
	}
	if _, err := sess.SetZoom(zoom); err != nil {
		logger.Fatal("set zoom", zap.Error(err))
	}
	area, err := sess.SetRotation(rotation)
	if err != nil {
		logger.Fatal("set rotation", zap.Error(err))
	}
	logger.Info("crop", zap.Any("area", area))

	if err := utils.EnsureDir(cfg.Output.OutputDir); err != nil {
		logger.Fatal("failed to create output directory", zap.Error(err))
	}

	if cfg.Debug {
		preview, err := sess.Preview()
		if err != nil {
			logger.Fatal("preview", zap.Error(err))
		}
		path := utils.GenerateOutputFilename(in, cfg.Output.OutputDir, "", "_preview", "png")
		if err := editor.Processor().SaveImage(preview, path, "png", 0, false); err != nil {
			logger.Warn("preview save failed", zap.Error(err))
		} else {
			logger.Info("wrote preview", zap.String("path", path))
		}
	}

	dataURL, err := editor.Commit(ctx, sess)
	if err != nil {
		logger.Fatal("failed to save photo", zap.Error(err))
	}
	profile.PhotoURL = dataURL

	photo, err := editor.Processor().LoadPhoto(ctx, dataURL)
	if err != nil {
		logger.Fatal("failed to decode baked photo", zap.Error(err))
	}
	path := utils.GenerateOutputFilename(in, cfg.Output.OutputDir, "", cfg.Output.Suffix, cfg.Output.Format)
	if err := editor.Processor().SaveImage(photo, path, cfg.Output.Format, cfg.Output.Quality, cfg.Output.Lossless); err != nil {
		logger.Fatal("failed to write photo", zap.Error(err))
	}
	logger.Info("wrote photo", zap.String("path", path))

	if makeCard {
		cardPath, err := editor.ExportCard(ctx, org, profile, cfg.Output.OutputDir)
		if err != nil {
			logger.Fatal("failed to export card", zap.Error(err))
		}
		fmt.Println(cardPath)
	}
	if printCard {
		lp := card.LPPrinter{Command: cfg.Card.PrintCommand, Destination: cfg.Card.Printer}
		if err := editor.PrintCard(ctx, org, profile, lp); err != nil {
			logger.Fatal("failed to print card", zap.Error(err))
		}
		logger.Info("card sent to printer", zap.String("printer", cfg.Card.Printer))
	}
}

type flagOverrides struct {
	outDir, locate, url, model, ext string
	quality                         int
	debug                           bool
	orgName, origin, printer        string
	project, credentials            string
}

// applyFlags lets non-empty command line flags win over the loaded config
func applyFlags(cfg *config.Config, f flagOverrides) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Output.OutputDir, f.outDir)
	set(&cfg.Locator.Mode, f.locate)
	set(&cfg.Locator.URL, f.url)
	set(&cfg.Locator.Model, f.model)
	set(&cfg.Output.Format, strings.ToLower(f.ext))
	set(&cfg.Card.OrganizationName, f.orgName)
	set(&cfg.Card.Origin, f.origin)
	set(&cfg.Card.Printer, f.printer)
	set(&cfg.Store.ProjectID, f.project)
	set(&cfg.Store.CredentialsFile, f.credentials)
	if f.project != "" {
		cfg.Store.Backend = "firestore"
	}
	if f.quality > 0 {
		cfg.Output.Quality = f.quality
	}
	if f.debug {
		cfg.Debug = true
	}
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.PhotoSaver, func(), error) {
	if cfg.Backend != "firestore" {
		return store.NewMemory(), func() {}, nil
	}
	fs, err := firestore.New(ctx, firestore.Options{ProjectID: cfg.ProjectID, CredentialsFile: cfg.CredentialsFile})
	if err != nil {
		return nil, nil, err
	}
	return fs, func() { _ = fs.Close() }, nil
}
