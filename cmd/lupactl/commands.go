package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"
)

type command func(args []string, globals GlobalFlags) error

var commands = map[string]command{
	"projects":    runProjects,
	"documents":   runDocuments,
	"ingest":      runIngest,
	"refresh":     runRefresh,
	"bulk":        runBulk,
	"resolve":     runResolve,
	"deployments": runDeployments,
	"deploy":      runDeploy,
	"promote":     runPromote,
	"demote":      runDemote,
	"search":      runSearch,
}

var (
	errNoProject = errors.New("--project is required")

	bold    = color.New(color.Bold)
	success = color.New(color.FgGreen)
	dim     = color.New(color.Faint)
)

func fail(err error) {
	color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func timeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Minute)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func projectClient(globals GlobalFlags) (*client, error) {
	if globals.Project == "" {
		return nil, errNoProject
	}
	return newClient(globals.API, globals.Token), nil
}

func statusColor(status string) *color.Color {
	switch status {
	case "success", "ready":
		return color.New(color.FgGreen)
	case "error":
		return color.New(color.FgRed)
	case "running":
		return color.New(color.FgYellow)
	}
	return color.New(color.FgCyan)
}

type project struct {
	Id                     string  `json:"id"`
	Name                   string  `json:"name"`
	ProductionDeploymentId *string `json:"production_deployment_id"`
}

func runProjects(args []string, globals GlobalFlags) error {
	fs := flag.NewFlagSet("projects", flag.ExitOnError)
	create := fs.String("create", "", "create a project with this name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c := newClient(globals.API, globals.Token)
	ctx, cancel := timeout()
	defer cancel()

	if *create != "" {
		var p project
		if err := c.do(ctx, http.MethodPost, "/api/v1/projects", nil, map[string]string{"name": *create}, &p); err != nil {
			return err
		}
		success.Printf("Created project %s (%s)\n", p.Name, p.Id)
		return nil
	}

	var projects []project
	if err := c.do(ctx, http.MethodGet, "/api/v1/projects", nil, nil, &projects); err != nil {
		return err
	}
	if globals.JSON {
		return printJSON(projects)
	}
	for _, p := range projects {
		prod := "-"
		if p.ProductionDeploymentId != nil {
			prod = *p.ProductionDeploymentId
		}
		fmt.Printf("%s  %s  %s\n", bold.Sprint(p.Id), p.Name, dim.Sprint("production="+prod))
	}
	return nil
}

type snapshot struct {
	Id          string `json:"id"`
	Version     int    `json:"version"`
	Status      string `json:"status"`
	ErrorReason string `json:"error_reason"`
	Url         string `json:"url"`
	CreatedAt   string `json:"created_at"`
}

type document struct {
	Id              string    `json:"id"`
	Path            string    `json:"path"`
	CurrentSnapshot *snapshot `json:"current_snapshot"`
}

func runDocuments(args []string, globals GlobalFlags) error {
	fs := flag.NewFlagSet("documents", flag.ExitOnError)
	folder := fs.String("folder", "", "only list this folder")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, err := projectClient(globals)
	if err != nil {
		return err
	}
	ctx, cancel := timeout()
	defer cancel()

	query := url.Values{}
	if *folder != "" {
		query.Set("folder", *folder)
	}
	var docs []document
	if err := c.do(ctx, http.MethodGet, projectPath(globals.Project, "/documents"), query, nil, &docs); err != nil {
		return err
	}
	if globals.JSON {
		return printJSON(docs)
	}
	for _, d := range docs {
		status := "none"
		if d.CurrentSnapshot != nil {
			status = d.CurrentSnapshot.Status
		}
		fmt.Printf("%s  %s  %s\n", d.Id, bold.Sprint(d.Path), statusColor(status).Sprint(status))
	}
	return nil
}

func runIngest(args []string, globals GlobalFlags) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	folder := fs.String("folder", "", "target folder (derived from the URL for websites)")
	name := fs.String("name", "", "document name")
	docType := fs.String("type", "website", "website or upload")
	refresh := fs.String("refresh", "none", "none, daily, weekly or monthly")
	parserName := fs.String("parser", "", "force a parser strategy")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: lupactl ingest [options] <url>")
	}
	c, err := projectClient(globals)
	if err != nil {
		return err
	}
	ctx, cancel := timeout()
	defer cancel()

	target := fs.Arg(0)
	docName := *name
	if docName == "" {
		if u, err := url.Parse(target); err == nil {
			parts := strings.Split(strings.Trim(u.Path, "/"), "/")
			docName = parts[len(parts)-1]
			if docName == "" {
				docName = u.Host
			}
		}
	}

	var out map[string]interface{}
	err = c.do(ctx, http.MethodPost, projectPath(globals.Project, "/documents"), nil, map[string]string{
		"folder":            *folder,
		"name":              docName,
		"url":               target,
		"type":              *docType,
		"refresh_frequency": *refresh,
		"parser_name":       *parserName,
	}, &out)
	if err != nil {
		return err
	}
	if globals.JSON {
		return printJSON(out)
	}
	success.Printf("Queued %s%s (snapshot %v)\n", out["folder"], out["name"], out["snapshot_id"])
	return nil
}

func runRefresh(args []string, globals GlobalFlags) error {
	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	source := fs.String("url", "", "new source URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: lupactl refresh [--url u] <document-id>")
	}
	c, err := projectClient(globals)
	if err != nil {
		return err
	}
	ctx, cancel := timeout()
	defer cancel()

	var snap snapshot
	path := projectPath(globals.Project, "/documents/"+url.PathEscape(fs.Arg(0))+"/snapshots")
	if err := c.do(ctx, http.MethodPost, path, nil, map[string]string{"url": *source}, &snap); err != nil {
		return err
	}
	success.Printf("Queued snapshot %s\n", snap.Id)
	return nil
}

func runBulk(args []string, globals GlobalFlags) error {
	fs := flag.NewFlagSet("bulk", flag.ExitOnError)
	file := fs.StringP("file", "f", "", "read URLs from this file, one per line (- for stdin)")
	folder := fs.String("folder", "", "put every document in this folder")
	refresh := fs.String("refresh", "none", "none, daily, weekly or monthly")
	if err := fs.Parse(args); err != nil {
		return err
	}
	urls := fs.Args()
	if *file != "" {
		read, err := readLines(*file)
		if err != nil {
			return err
		}
		urls = append(urls, read...)
	}
	if len(urls) == 0 {
		return errors.New("no URLs given")
	}
	c, err := projectClient(globals)
	if err != nil {
		return err
	}
	ctx, cancel := timeout()
	defer cancel()

	var out struct {
		Items []struct {
			Url        string   `json:"url"`
			SnapshotId string   `json:"snapshot_id"`
			Tags       []string `json:"tags"`
		} `json:"items"`
	}
	err = c.do(ctx, http.MethodPost, projectPath(globals.Project, "/snapshots/bulk"), nil, map[string]interface{}{
		"urls":              urls,
		"folder":            *folder,
		"refresh_frequency": *refresh,
	}, &out)
	if err != nil {
		return err
	}
	if globals.JSON {
		return printJSON(out)
	}
	for _, item := range out.Items {
		fmt.Printf("%s  %s  %s\n", item.SnapshotId, item.Url, dim.Sprint(strings.Join(item.Tags, ",")))
	}
	success.Printf("Queued %d websites\n", len(out.Items))
	return nil
}

func readLines(path string) ([]string, error) {
	f := os.Stdin
	if path != "-" {
		opened, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer opened.Close()
		f = opened
	}
	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			out = append(out, line)
		}
	}
	return out, scanner.Err()
}

func runResolve(args []string, globals GlobalFlags) error {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	deployment := fs.String("deployment", "", "resolve against this deployment")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: lupactl resolve [--deployment id] <path>")
	}
	c, err := projectClient(globals)
	if err != nil {
		return err
	}
	ctx, cancel := timeout()
	defer cancel()

	query := url.Values{"path": {fs.Arg(0)}}
	if *deployment != "" {
		query.Set("deployment_id", *deployment)
	}
	var out struct {
		Document document `json:"document"`
		Snapshot snapshot `json:"snapshot"`
	}
	if err := c.do(ctx, http.MethodGet, projectPath(globals.Project, "/resolve"), query, nil, &out); err != nil {
		return err
	}
	if globals.JSON {
		return printJSON(out)
	}
	fmt.Printf("%s v%d  %s  %s\n", bold.Sprint(out.Document.Path), out.Snapshot.Version,
		out.Snapshot.Id, statusColor(out.Snapshot.Status).Sprint(out.Snapshot.Status))
	if out.Snapshot.ErrorReason != "" {
		dim.Println(out.Snapshot.ErrorReason)
	}
	return nil
}

type deployment struct {
	Id          string  `json:"id"`
	Name        string  `json:"name"`
	Status      string  `json:"status"`
	Environment *string `json:"environment"`
}

func runDeployments(args []string, globals GlobalFlags) error {
	c, err := projectClient(globals)
	if err != nil {
		return err
	}
	ctx, cancel := timeout()
	defer cancel()

	var deployments []deployment
	if err := c.do(ctx, http.MethodGet, projectPath(globals.Project, "/deployments"), nil, nil, &deployments); err != nil {
		return err
	}
	if globals.JSON {
		return printJSON(deployments)
	}
	for _, d := range deployments {
		env := "-"
		if d.Environment != nil {
			env = *d.Environment
		}
		fmt.Printf("%s  %-20s %s  %s\n", d.Id, d.Name, statusColor(d.Status).Sprint(d.Status), bold.Sprint(env))
	}
	return nil
}

func runDeploy(args []string, globals GlobalFlags) error {
	fs := flag.NewFlagSet("deploy", flag.ExitOnError)
	name := fs.String("name", "", "deployment name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, err := projectClient(globals)
	if err != nil {
		return err
	}
	ctx, cancel := timeout()
	defer cancel()

	var d deployment
	if err := c.do(ctx, http.MethodPost, projectPath(globals.Project, "/deployments"), nil, map[string]string{"name": *name}, &d); err != nil {
		return err
	}
	success.Printf("Queued deployment %s (%s)\n", d.Name, d.Id)
	return nil
}

type environmentChange struct {
	DeploymentId         string  `json:"deployment_id"`
	Environment          *string `json:"environment"`
	PreviousProductionId *string `json:"previous_production_id"`
	TxId                 string  `json:"txid"`
}

func changeEnvironment(globals GlobalFlags, args []string, action string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: lupactl %s <deployment-id>", action)
	}
	c, err := projectClient(globals)
	if err != nil {
		return err
	}
	ctx, cancel := timeout()
	defer cancel()

	var out environmentChange
	path := projectPath(globals.Project, "/deployments/"+url.PathEscape(args[0])+"/"+action)
	if err := c.do(ctx, http.MethodPatch, path, nil, nil, &out); err != nil {
		return err
	}
	if globals.JSON {
		return printJSON(out)
	}
	env := "none"
	if out.Environment != nil {
		env = *out.Environment
	}
	success.Printf("Deployment %s is now %s (txid %s)\n", out.DeploymentId, env, out.TxId)
	if out.PreviousProductionId != nil {
		dim.Printf("Previous production %s moved to staging\n", *out.PreviousProductionId)
	}
	return nil
}

func runPromote(args []string, globals GlobalFlags) error {
	return changeEnvironment(globals, args, "promote")
}

func runDemote(args []string, globals GlobalFlags) error {
	return changeEnvironment(globals, args, "demote")
}

func runSearch(args []string, globals GlobalFlags) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	topK := fs.IntP("top-k", "k", 5, "number of results")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return errors.New("usage: lupactl search [-k n] <deployment-id> <query...>")
	}
	c, err := projectClient(globals)
	if err != nil {
		return err
	}
	ctx, cancel := timeout()
	defer cancel()

	query := url.Values{
		"q":     {strings.Join(fs.Args()[1:], " ")},
		"top_k": {strconv.Itoa(*topK)},
	}
	var results []struct {
		Score   float64 `json:"score"`
		Content string  `json:"content"`
		Folder  string  `json:"folder"`
		Name    string  `json:"name"`
	}
	path := projectPath(globals.Project, "/deployments/"+url.PathEscape(fs.Arg(0))+"/search")
	if err := c.do(ctx, http.MethodGet, path, query, nil, &results); err != nil {
		return err
	}
	if globals.JSON {
		return printJSON(results)
	}
	for _, r := range results {
		fmt.Printf("%s %s%s\n", success.Sprintf("%.3f", r.Score), bold.Sprint(r.Folder), bold.Sprint(r.Name))
		fmt.Println(dim.Sprint(truncate(r.Content, 200)))
	}
	return nil
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
