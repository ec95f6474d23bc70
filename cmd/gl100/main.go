// Command gl100 manages tracks on a Mooer GL100 looper pedal over USB.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/google/gousb"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	gl100 "github.com/looperkit/gl100"
	"github.com/looperkit/gl100/audio"
	"github.com/looperkit/gl100/config"
	"github.com/looperkit/gl100/playback"
	"github.com/looperkit/gl100/usb"
)

var (
	configPath string
	logLevel   string

	cfg config.Config
)

func main() {
	root := &cobra.Command{
		Use:   "gl100",
		Short: "Manage tracks on a Mooer GL100 looper pedal",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			// Flags explicitly set on the command line win over the
			// file and environment.
			cmd.Flags().VisitAll(func(f *pflag.Flag) {
				if f.Changed && f.Name == "log-level" {
					cfg.LogLevel = logLevel
				}
			})
			return cfg.SetupLogging()
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to TOML config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		devicesCmd(),
		listCmd(),
		infoCmd(),
		uploadCmd(),
		downloadCmd(),
		deleteCmd(),
		playCmd(),
		stopCmd(),
		streamCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// withClient opens the pedal, runs fn, and closes it again.
func withClient(cmd *cobra.Command, fn func(*gl100.Client) error) error {
	client, err := gl100.New(cfg)
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

// parseSlot converts and range-checks a slot argument.
func parseSlot(arg string) (int, error) {
	slot, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid slot %q: %w", arg, err)
	}
	return slot, nil
}

// progressPrinter writes transfer progress to stderr.
func progressPrinter(verb string) gl100.Progress {
	return func(done, total uint64) {
		if total == 0 {
			return
		}
		fmt.Fprintf(os.Stderr, "\r%s %d/%d bytes (%.0f%%)", verb, done, total,
			float64(done)/float64(total)*100)
		if done >= total {
			fmt.Fprintln(os.Stderr)
		}
	}
}

func devicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List attached pedals",
		RunE: func(cmd *cobra.Command, args []string) error {
			found, err := usb.FindDevices(gousb.ID(cfg.VendorID), gousb.ID(cfg.ProductID))
			if err != nil {
				return err
			}
			if len(found) == 0 {
				fmt.Println("no devices found")
				return nil
			}
			for _, d := range found {
				fmt.Println(d)
			}
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all track slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(client *gl100.Client) error {
				tracks, err := client.ListTracks(cmd.Context())
				if err != nil {
					return err
				}
				for _, t := range tracks {
					if !t.HasTrack {
						continue
					}
					fmt.Printf("slot %3d: %10d bytes  %7.1fs\n", t.Slot, t.Size, t.Duration)
				}
				return nil
			})
		},
	}
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <slot>",
		Short: "Show one slot's track details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := parseSlot(args[0])
			if err != nil {
				return err
			}
			return withClient(cmd, func(client *gl100.Client) error {
				t, err := client.QueryTrack(cmd.Context(), slot)
				if err != nil {
					return err
				}
				if !t.HasTrack {
					fmt.Printf("slot %d: empty\n", slot)
					return nil
				}
				fmt.Printf("slot %d: %d bytes, %.2fs\n", t.Slot, t.Size, t.Duration)
				return nil
			})
		},
	}
}

func uploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <slot> <file.wav>",
		Short: "Upload a WAV file to a slot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := parseSlot(args[0])
			if err != nil {
				return err
			}
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			buf, err := audio.ReadWAV(f)
			if err != nil {
				return err
			}
			logrus.WithFields(logrus.Fields{
				"file":   args[1],
				"format": buf.Format.String(),
				"frames": buf.Frames(),
			}).Info("WAV file loaded")

			return withClient(cmd, func(client *gl100.Client) error {
				return client.UploadTrack(cmd.Context(), slot, buf, progressPrinter("uploaded"))
			})
		},
	}
	return cmd
}

func downloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download <slot> <file.wav>",
		Short: "Download a slot's track to a WAV file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := parseSlot(args[0])
			if err != nil {
				return err
			}
			return withClient(cmd, func(client *gl100.Client) error {
				buf, err := client.DownloadTrack(cmd.Context(), slot, progressPrinter("downloaded"))
				if err != nil {
					return err
				}

				f, err := os.Create(args[1])
				if err != nil {
					return err
				}
				defer f.Close()
				return audio.WriteWAV(f, buf)
			})
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <slot>",
		Short: "Erase a slot's track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := parseSlot(args[0])
			if err != nil {
				return err
			}
			return withClient(cmd, func(client *gl100.Client) error {
				return client.DeleteTrack(cmd.Context(), slot)
			})
		},
	}
}

func playCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "play <slot>",
		Short: "Start playback on the pedal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := parseSlot(args[0])
			if err != nil {
				return err
			}
			return withClient(cmd, func(client *gl100.Client) error {
				return client.PlayTrack(cmd.Context(), slot)
			})
		},
	}
}

func stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <slot>",
		Short: "Stop playback on the pedal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := parseSlot(args[0])
			if err != nil {
				return err
			}
			return withClient(cmd, func(client *gl100.Client) error {
				return client.StopTrack(cmd.Context(), slot)
			})
		},
	}
}

func streamCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stream <slot>",
		Short: "Play a slot's track through the host's sound output while downloading",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := parseSlot(args[0])
			if err != nil {
				return err
			}
			return withClient(cmd, func(client *gl100.Client) error {
				sink, err := playback.NewPulseSink()
				if err != nil {
					return err
				}
				return client.StreamTrack(cmd.Context(), slot, sink, progressPrinter("streamed"))
			})
		},
	}
}
