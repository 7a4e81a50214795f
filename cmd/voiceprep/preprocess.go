package main

import (
	"fmt"
	"os"

	"github.com/example/voiceprep/internal/audio"
	"github.com/spf13/cobra"
)

func newPreprocessCmd() *cobra.Command {
	var (
		audioPath string
		refText   string
		lang      string
		outPath   string
		dumpAudio string
	)

	cmd := &cobra.Command{
		Use:   "preprocess",
		Short: "Preprocess one reference clip into a conditioning bundle",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if audioPath == "" || refText == "" {
				return fmt.Errorf("--audio and --text are required")
			}

			wav, err := os.ReadFile(audioPath)
			if err != nil {
				return fmt.Errorf("read reference audio: %w", err)
			}

			if dumpAudio != "" {
				if err := writeDecodedAudio(wav, dumpAudio); err != nil {
					return err
				}
			}

			svc, closeSvc, err := buildService(cfg)
			if err != nil {
				return err
			}
			defer closeSvc()

			bundle, err := svc.Preprocess(cmd.Context(), wav, refText, lang)
			if err != nil {
				return err
			}

			if err := os.WriteFile(outPath, bundle, 0o644); err != nil {
				return fmt.Errorf("write bundle: %w", err)
			}

			_, err = fmt.Fprintf(os.Stdout, "wrote %d bytes to %s\n", len(bundle), outPath)
			return err
		},
	}

	cmd.Flags().StringVar(&audioPath, "audio", "", "Reference WAV file (16-bit PCM)")
	cmd.Flags().StringVar(&refText, "text", "", "Reference transcript")
	cmd.Flags().StringVar(&lang, "lang", "zh", "Transcript language (zh|en)")
	cmd.Flags().StringVar(&outPath, "output", "bundle.safetensors", "Output bundle path")
	cmd.Flags().StringVar(&dumpAudio, "dump-audio", "", "Also write the decoded 24 kHz mono audio to this WAV path")

	return cmd
}

// writeDecodedAudio round-trips the reference clip through the decode
// path (mixdown plus resample) and writes the result. Useful for
// inspecting what the model actually receives.
func writeDecodedAudio(wav []byte, path string) error {
	samples, err := audio.DecodeSamples(wav)
	if err != nil {
		return fmt.Errorf("decode reference audio: %w", err)
	}

	out, err := audio.EncodeWAV(samples, audio.TargetSampleRate)
	if err != nil {
		return fmt.Errorf("encode decoded audio: %w", err)
	}

	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write decoded audio: %w", err)
	}

	return nil
}
