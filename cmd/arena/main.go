// Command arena runs a headless arena client against a relay, and reads back
// recorded matches.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/OCAP2/arena/internal/config"

	"github.com/alecthomas/kong"
)

const appName = "arena"

type runCmd struct {
	Match    string        `arg:"" help:"Match code to join."`
	Player   string        `arg:"" help:"Local player id."`
	Name     string        `help:"Display name, defaults to the player id."`
	Relay    string        `help:"Relay URL, overrides relay.url."`
	Codec    string        `help:"Wire codec (json or cbor), overrides relay.codec."`
	Storage  string        `help:"Event sink (memory, sqlite, postgres, influx, websocket, none), overrides storage.type."`
	Route    string        `help:"Waypoints to patrol as a JSON array, e.g. [[200,200],[1400,200]]."`
	Spawn    string        `help:"Local spawn position as x,y." default:"800,600"`
	Greeting string        `help:"Chat line sent on join."`
	Publish  bool          `help:"Publish the result and the exported file to the results server."`
	Timeout  time.Duration `help:"Give up after this long even if the match is still running." default:"10m"`

	Speed          float64 `help:"Speed stat, 0 for the default."`
	ShootRange     float64 `help:"Shoot range stat, 0 for the default."`
	ShotsPerMinute float64 `help:"Fire rate stat, 0 for the default."`
	HitPower       int     `help:"Hit power stat, 0 for the default."`
}

type resultsCmd struct {
	File  string `arg:"" help:"SQLite dump written by the sqlite sink, or a directory of dumps to search." type:"path"`
	Match string `arg:"" help:"Match code to read."`
	JSON  bool   `help:"Print the match as JSON."`
	Shots bool   `help:"Also list the recorded shots."`
}

var CLI struct {
	Config string `help:"Directory containing arena.cfg.json." type:"path" default:"."`
	Debug  bool   `help:"Whether to enable debug logging."`

	Run     runCmd     `cmd:"" help:"Join a match with the headless bot."`
	Results resultsCmd `cmd:"" help:"Print a match recorded by the sqlite sink."`
}

func writeError(err error) {
	fmt.Fprintf(os.Stderr, "%s\n", err)
	os.Exit(1)
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name(appName),
		kong.Description("headless arena combat client"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}))

	if err := config.Load(CLI.Config); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config, using defaults: %v\n", err)
		config.LoadDefaults()
	}
	level := config.GetString("logLevel")
	if CLI.Debug {
		level = "DEBUG"
	}

	var err error
	switch ctx.Command() {
	case "run <match> <player>":
		err = CLI.Run.run(level)
	case "results <file> <match>":
		err = CLI.Results.run(level)
	}
	if err != nil {
		writeError(err)
	}
}
