package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/podium/internal/ink"
	"github.com/alfredjeanlab/podium/internal/model"
)

var signCmd = &cobra.Command{
	Use:     "sign",
	Short:   "Open and sign a contract with a signing token",
	GroupID: "signing",
}

var signViewCmd = &cobra.Command{
	Use:   "view <token>",
	Short: "Show what the signer sees for a token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := signClient.ResolveToken(context.Background(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(v)
			return nil
		}
		printSigningView(os.Stdout, v)
		return nil
	},
}

var signSubmitCmd = &cobra.Command{
	Use:   "submit <token>",
	Short: "Submit a signature image for a token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")
		title, _ := cmd.Flags().GetString("title")
		imagePath, _ := cmd.Flags().GetString("image")

		dataURL, err := signatureDataURL(imagePath)
		if err != nil {
			return err
		}
		res, err := signClient.SubmitSignature(context.Background(), args[0], &model.SignatureInput{
			Name:      name,
			Email:     email,
			Title:     title,
			ImageData: dataURL,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(res)
			return nil
		}
		fmt.Printf("Signed. %s is %s (%d signatures captured)\n",
			res.Contract.Number, res.Contract.Status, len(res.Signatures))
		return nil
	},
}

// signatureDataURL reads a PNG or JPEG file into a base64 data URL and
// rejects blank canvases before anything is sent.
func signatureDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading signature image: %w", err)
	}
	mime := http.DetectContentType(data)
	if mime != "image/png" && mime != "image/jpeg" {
		return "", fmt.Errorf("signature image must be PNG or JPEG, got %s", mime)
	}
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
	if err := ink.Check(dataURL); err != nil {
		return "", err
	}
	return dataURL, nil
}

func init() {
	signSubmitCmd.Flags().String("name", "", "signer's full name")
	signSubmitCmd.Flags().String("email", "", "signer's email address")
	signSubmitCmd.Flags().String("title", "", "signer's job title")
	signSubmitCmd.Flags().String("image", "", "PNG or JPEG file holding the signature")
	_ = signSubmitCmd.MarkFlagRequired("name")
	_ = signSubmitCmd.MarkFlagRequired("email")
	_ = signSubmitCmd.MarkFlagRequired("image")

	signCmd.AddCommand(signViewCmd)
	signCmd.AddCommand(signSubmitCmd)
}
