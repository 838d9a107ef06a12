package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/binzume/retarget/anim"
	"github.com/binzume/retarget/asset"
	"github.com/binzume/retarget/config"
	"github.com/binzume/retarget/internal/logging"
	"github.com/binzume/retarget/mapper"
	"github.com/cheggaaa/pb/v3"
)

const defaultConfigFile = "retarget.toml"

type job struct {
	db     *asset.Database
	cfg    *config.Config
	mapper *asset.Resource
	target string
	motion string
	output string
}

func (j *job) run(ctx context.Context) error {
	clip, err := loadMotion(j.motion, j.cfg)
	if err != nil {
		return err
	}
	opts := anim.RetargetOptions{
		Workers: j.cfg.ThreadCount(),
		Runtime: mapper.RuntimeOptions{AnchorToParent: j.cfg.AnchorToParent},
		Step:    j.cfg.Step(clip.FrameRate),
	}
	// the watcher reloads skeletons and mappers in place
	release := j.db.Acquire()
	defer release()
	bar := pb.StartNew(opts.FrameCount(clip))
	opts.Progress = func() { bar.Increment() }
	result, err := anim.RetargetClip(ctx, j.mapper.Mapper, clip, opts)
	bar.Finish()
	if err != nil {
		return err
	}
	if err := saveClip(j.output, result, j.target, j.cfg); err != nil {
		return err
	}
	logging.Info("saved", "path", j.output, "bones", len(result.Tracks), "keys", result.KeyCount())
	return nil
}

// watch re-runs the job whenever the mapper or one of its skeletons changes.
func watch(ctx context.Context, db *asset.Database, j *job) error {
	w, err := asset.NewWatcher(db)
	if err != nil {
		return err
	}
	if err := w.AddAll(); err != nil {
		return err
	}
	changed := make(chan struct{}, 1)
	unsubscribe := db.Subscribe(j.mapper.Handle, func(*asset.Resource) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	logging.Info("watching", "files", len(db.Paths()))
	for {
		select {
		case <-changed:
			if err := j.run(ctx); err != nil {
				logging.Error("retarget failed", "err", err)
			}
		case err := <-done:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] source.pmx target.pmx motion.vmd [output.vmd]\n", os.Args[0])
		flag.PrintDefaults()
	}
	confFile := flag.String("config", "", "config file (.toml)")
	mapperFile := flag.String("mapper", "", "mapper file (.yaml) to use instead of building one")
	saveMapper := flag.String("save-mapper", "", "write the mapper (.yaml)")
	saveSkel := flag.String("save-skeleton", "", "write the target skeleton (.yaml, .pmx)")
	lookup := flag.String("lookup", "", "bone pairing: name or distance")
	workers := flag.Int("workers", 0, "0:auto")
	anchor := flag.Bool("anchor", false, "keep target bone offsets from their parents")
	logLevel := flag.String("log", "", "debug, info, warn or error")
	watchFiles := flag.Bool("watch", false, "retarget again when skeleton or mapper files change")
	flag.Parse()

	if flag.NArg() < 3 {
		flag.Usage()
		os.Exit(2)
	}
	source, target, motion := flag.Arg(0), flag.Arg(1), flag.Arg(2)
	output := flag.Arg(3)
	if output == "" {
		output = defaultOutputFile(motion, target)
	}

	cfg := config.Default()
	if *confFile == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			*confFile = defaultConfigFile
		}
	}
	if *confFile != "" {
		var err error
		if cfg, err = config.Load(*confFile); err != nil {
			logging.Fatal("config", "err", err)
		}
	}
	err := cfg.Resolve(config.Flags{
		LogLevel: *logLevel,
		Workers:  *workers,
		Lookup:   *lookup,
		Anchor:   *anchor,
		Watch:    *watchFiles,
	})
	if err != nil {
		logging.Fatal("config", "err", err)
	}
	if err := logging.SetLevel(cfg.LogLevel); err != nil {
		logging.Fatal("config", "err", err)
	}

	db := newDatabase(&cfg)
	src, err := db.LoadSkeleton(source)
	if err != nil {
		logging.Fatal("source", "err", err)
	}
	tgt, err := db.LoadSkeleton(target)
	if err != nil {
		logging.Fatal("target", "err", err)
	}
	res, err := buildMapper(db, &cfg, src, tgt, *mapperFile)
	if err != nil {
		logging.Fatal("mapper", "err", err)
	}
	if *saveMapper != "" {
		if err := db.SaveMapper(*saveMapper, res.Mapper); err != nil {
			logging.Fatal("save mapper", "err", err)
		}
	}
	if *saveSkel != "" {
		if err := saveSkeleton(*saveSkel, res.Mapper.Target(), &cfg); err != nil {
			logging.Fatal("save skeleton", "err", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	j := &job{db: db, cfg: &cfg, mapper: res, target: target, motion: motion, output: output}
	if err := j.run(ctx); err != nil {
		logging.Fatal("retarget", "err", err)
	}
	if cfg.Watch {
		if err := watch(ctx, db, j); err != nil {
			logging.Fatal("watch", "err", err)
		}
	}
}
