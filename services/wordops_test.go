package services

import (
	"context"
	"testing"
)

func TestCreateArgs(t *testing.T) {
	runner := &fakeRunner{}
	tool := &SiteTool{Bin: "wo", Runner: runner}

	err := tool.Create(context.Background(), "site1.com", "8.1",
		[]string{"ssl", "cache"},
		&AdminCredentials{User: "owner", Email: "owner@site1.com", Pass: "pw"})
	if err != nil {
		t.Fatal(err)
	}
	want := "wo site create site1.com --php=8.1 -le --wpredis --user=owner --email=owner@site1.com --pass=pw"
	if runner.indexOf(want) != 0 {
		t.Errorf("argv = %v, want %q", runner.commands(), want)
	}
}

func TestCreateWithoutOptions(t *testing.T) {
	runner := &fakeRunner{}
	tool := &SiteTool{Bin: "wo", Runner: runner}
	if err := tool.Create(context.Background(), "bare.com", "8.2", nil, nil); err != nil {
		t.Fatal(err)
	}
	if runner.indexOf("wo site create bare.com --php=8.2") != 0 {
		t.Errorf("argv = %v", runner.commands())
	}
}

func TestUpdateSSLFlags(t *testing.T) {
	runner := &fakeRunner{}
	tool := &SiteTool{Bin: "wo", Runner: runner}

	if err := tool.UpdateSSL(context.Background(), "site1.com", true); err != nil {
		t.Fatal(err)
	}
	if err := tool.UpdateSSL(context.Background(), "site1.com", false); err != nil {
		t.Fatal(err)
	}
	cmds := runner.commands()
	if cmds[0] != "wo site update site1.com --le" {
		t.Errorf("enable argv = %q", cmds[0])
	}
	if cmds[1] != "wo site update site1.com --le=off" {
		t.Errorf("disable argv = %q", cmds[1])
	}
}

func TestListSplitsAndSkipsBlankLines(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		"wo site list": "site1.com\n\nsite2.com\n",
	}}
	tool := &SiteTool{Bin: "wo", Runner: runner}

	domains, err := tool.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(domains) != 2 || domains[0] != "site1.com" || domains[1] != "site2.com" {
		t.Errorf("domains = %v", domains)
	}
}

func TestListEmpty(t *testing.T) {
	runner := &fakeRunner{}
	tool := &SiteTool{Bin: "wo", Runner: runner}
	domains, err := tool.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(domains) != 0 {
		t.Errorf("domains = %v, want none", domains)
	}
}
