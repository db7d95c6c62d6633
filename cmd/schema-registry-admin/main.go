// Command schema-registry-admin is an HTTP client for registry operations.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	client    = &http.Client{Timeout: 30 * time.Second}
)

const apiBase = "/api/v1/schemaregistry"

func main() {
	root := &cobra.Command{
		Use:           "schema-registry-admin",
		Short:         "Administer a schema registry over its HTTP API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8081", "registry server URL")

	root.AddCommand(
		providersCmd(),
		listCmd(),
		getCmd(),
		registerCmd(),
		versionsCmd(),
		latestCmd(),
		checkCmd(),
		serdesCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List supported schema dialects",
		RunE: func(cmd *cobra.Command, args []string) error {
			var types []string
			if err := getJSON(apiBase+"/schemaproviders", &types); err != nil {
				return err
			}
			for _, t := range types {
				fmt.Println(t)
			}
			return nil
		},
	}
}

type metadataInfo struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	SchemaGroup   string `json:"schemaGroup"`
	Compatibility string `json:"compatibility"`
}

func listCmd() *cobra.Command {
	var schemaType string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered schemas",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := apiBase + "/schemas"
			if schemaType != "" {
				path += "?type=" + schemaType
			}
			var infos []metadataInfo
			if err := getJSON(path, &infos); err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tGROUP\tCOMPATIBILITY")
			for _, info := range infos {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
					info.ID, info.Name, info.Type, info.SchemaGroup, info.Compatibility)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&schemaType, "type", "", "filter by dialect")
	return cmd
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Show schema metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw json.RawMessage
			if err := getJSON(apiBase+"/schemas/"+args[0], &raw); err != nil {
				return err
			}
			return printJSON(raw)
		},
	}
}

func registerCmd() *cobra.Command {
	var (
		schemaType  string
		group       string
		compat      string
		description string
		schemaFile  string
	)
	cmd := &cobra.Command{
		Use:   "register <name>",
		Short: "Register schema metadata and a first version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := os.ReadFile(schemaFile)
			if err != nil {
				return fmt.Errorf("read schema file: %w", err)
			}

			meta := map[string]interface{}{
				"name":          args[0],
				"type":          schemaType,
				"schemaGroup":   group,
				"compatibility": compat,
				"description":   description,
			}
			if err := postJSON(apiBase+"/schemas", meta, nil); err != nil {
				return err
			}

			version := map[string]interface{}{"schemaText": string(text)}
			var raw json.RawMessage
			if err := postJSON(apiBase+"/schemas/"+args[0]+"/versions", version, &raw); err != nil {
				return err
			}
			return printJSON(raw)
		},
	}
	cmd.Flags().StringVar(&schemaType, "type", "avro", "schema dialect (avro, json, protobuf)")
	cmd.Flags().StringVar(&group, "group", "", "schema group")
	cmd.Flags().StringVar(&compat, "compatibility", "BACKWARD", "compatibility policy")
	cmd.Flags().StringVar(&description, "description", "", "schema description")
	cmd.Flags().StringVar(&schemaFile, "schema-file", "", "path to the schema text")
	_ = cmd.MarkFlagRequired("schema-file")
	return cmd
}

func versionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "versions <name>",
		Short: "List all versions of a schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var infos []struct {
				Version     int    `json:"version"`
				Fingerprint string `json:"fingerprint"`
				Timestamp   int64  `json:"timestamp"`
			}
			if err := getJSON(apiBase+"/schemas/"+args[0]+"/versions", &infos); err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tFINGERPRINT\tREGISTERED")
			for _, info := range infos {
				fmt.Fprintf(w, "%d\t%.16s\t%s\n", info.Version, info.Fingerprint,
					time.UnixMilli(info.Timestamp).Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
}

func latestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "latest <name>",
		Short: "Show the latest version of a schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw json.RawMessage
			if err := getJSON(apiBase+"/schemas/"+args[0]+"/versions/latest", &raw); err != nil {
				return err
			}
			return printJSON(raw)
		},
	}
}

func checkCmd() *cobra.Command {
	var (
		schemaFile string
		version    int
	)
	cmd := &cobra.Command{
		Use:   "check <name>",
		Short: "Check a candidate schema's compatibility",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := os.ReadFile(schemaFile)
			if err != nil {
				return fmt.Errorf("read schema file: %w", err)
			}
			path := apiBase + "/schemas/" + args[0] + "/compatibility"
			if version > 0 {
				path = apiBase + "/schemas/" + args[0] + "/versions/" + strconv.Itoa(version) + "/compatibility"
			}

			var result struct {
				IsCompatible bool     `json:"is_compatible"`
				Messages     []string `json:"messages"`
			}
			body := map[string]interface{}{"schemaText": string(text)}
			if err := postJSON(path, body, &result); err != nil {
				return err
			}
			if result.IsCompatible {
				fmt.Println("compatible")
				return nil
			}
			fmt.Println("incompatible:")
			for _, msg := range result.Messages {
				fmt.Println("  -", msg)
			}
			os.Exit(1)
			return nil
		},
	}
	cmd.Flags().StringVar(&schemaFile, "schema-file", "", "path to the candidate schema text")
	cmd.Flags().IntVar(&version, "version", 0, "check against one stored version instead of all")
	_ = cmd.MarkFlagRequired("schema-file")
	return cmd
}

func serdesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serdes <name>",
		Short: "List the serdes bound to a schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var infos []struct {
				ID           int64  `json:"id"`
				Name         string `json:"name"`
				ClassName    string `json:"className"`
				IsSerializer bool   `json:"isSerializer"`
			}
			if err := getJSON(apiBase+"/schemas/"+args[0]+"/serdes", &infos); err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCLASS\tROLE")
			for _, info := range infos {
				role := "deserializer"
				if info.IsSerializer {
					role = "serializer"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", info.ID, info.Name, info.ClassName, role)
			}
			return w.Flush()
		},
	}
	return cmd
}

func getJSON(path string, out interface{}) error {
	resp, err := client.Get(serverURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func postJSON(path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := client.Post(serverURL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (%s)", apiErr.Error, resp.Status)
		}
		return fmt.Errorf("request failed: %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func printJSON(raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return err
	}
	fmt.Println(buf.String())
	return nil
}
