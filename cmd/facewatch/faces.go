package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"facewatch/internal/app"
	"facewatch/internal/service/faces"
	"facewatch/internal/service/recognition"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var facesCmd = &cobra.Command{
	Use:   "faces",
	Short: "Manage the known-face gallery",
}

var facesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled faces",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFaces(cmd.Context(), func(svc *faces.Service) error {
			list := svc.List()
			if len(list) == 0 {
				fmt.Println("No known faces enrolled.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tIMAGE\tENROLLED")
			fmt.Fprintln(w, "--\t----\t-----\t--------")
			for _, f := range list {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", f.ID, f.Name, f.ImagePath, f.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
			return w.Flush()
		})
	},
}

var facesAddCmd = &cobra.Command{
	Use:   "add <name> <image>",
	Short: "Enroll a face from an image file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		image, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		return withFaces(cmd.Context(), func(svc *faces.Service) error {
			face, err := svc.Enroll(cmd.Context(), args[0], image)
			if err != nil {
				return err
			}
			fmt.Printf("Enrolled %s (%s)\n", face.Name, face.ImagePath)
			return nil
		})
	},
}

var facesRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove an enrolled face",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFaces(cmd.Context(), func(svc *faces.Service) error {
			if err := svc.Remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Removed %s\n", args[0])
			return nil
		})
	},
}

var facesImportCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "Enroll every image in a directory, named after the file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := os.ReadDir(args[0])
		if err != nil {
			return err
		}
		var files []string
		for _, e := range entries {
			if !e.IsDir() && faces.IsImageFile(e.Name()) {
				files = append(files, filepath.Join(args[0], e.Name()))
			}
		}
		if len(files) == 0 {
			fmt.Println("No images found.")
			return nil
		}

		return withFaces(cmd.Context(), func(svc *faces.Service) error {
			bar := progressbar.NewOptions(len(files),
				progressbar.OptionSetDescription("Enrolling faces"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
			)

			var failed []string
			for _, path := range files {
				if cmd.Context().Err() != nil {
					break
				}
				name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				if err := enrollFile(cmd.Context(), svc, name, path); err != nil {
					failed = append(failed, fmt.Sprintf("%s: %v", filepath.Base(path), err))
				}
				bar.Add(1)
			}
			bar.Finish()
			fmt.Fprintln(os.Stderr)

			fmt.Printf("Enrolled %d of %d image(s)\n", len(files)-len(failed), len(files))
			for _, f := range failed {
				fmt.Printf("  skipped %s\n", f)
			}
			return nil
		})
	},
}

func enrollFile(ctx context.Context, svc *faces.Service, name, path string) error {
	image, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	_, err = svc.Enroll(ctx, name, image)
	return err
}

// withFaces opens the known-face store and detector, syncs the gallery and
// runs fn.
func withFaces(ctx context.Context, fn func(*faces.Service) error) error {
	stores, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.Close()

	detector := app.NewDetector(cfg, log)
	defer detector.Close()

	svc := faces.NewService(detector, stores.KnownFaces, recognition.NewGallery(), cfg.KnownFacesDir, log)
	if _, err := svc.Sync(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: gallery sync failed: %v\n", err)
	}
	return fn(svc)
}

func init() {
	facesCmd.AddCommand(facesListCmd, facesAddCmd, facesRemoveCmd, facesImportCmd)
	rootCmd.AddCommand(facesCmd)
}
