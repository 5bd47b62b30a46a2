package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestDiscordSendsEmbed(t *testing.T) {
	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	out := NewDiscordChannel(0).Send(context.Background(), srv.URL, "Alerta", "Preço caiu", testProduct())
	if !out.Success || out.Channel != "discord" {
		t.Fatalf("Send() = %+v", out)
	}
	if len(got.Embeds) != 1 {
		t.Fatalf("embeds = %+v", got.Embeds)
	}
	embed := got.Embeds[0]
	if embed.Title != "🎯 Alerta" || embed.URL != testProduct().ProductURL || embed.Color != discordColor {
		t.Errorf("embed = %+v", embed)
	}
	// produto, atual, alvo e economia
	if len(embed.Fields) != 4 || embed.Fields[3].Name != "Economia" {
		t.Errorf("fields = %+v", embed.Fields)
	}
}

func TestDiscordReportsHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	out := NewDiscordChannel(0).Send(context.Background(), srv.URL, "Alerta", "Preço caiu", testProduct())
	if out.Success || out.Error != "HTTP 404" {
		t.Errorf("Send() = %+v, want HTTP 404 failure", out)
	}
}

func TestIncomingWebhooksRejectInvalidURL(t *testing.T) {
	for _, ch := range []Channel{NewDiscordChannel(0), NewSlackChannel(0)} {
		out := ch.Send(context.Background(), "not a url", "Alerta", "x", nil)
		if out.Success || out.Error == "" {
			t.Errorf("%s.Send(invalid) = %+v", ch.Name(), out)
		}
	}
}

func TestSlackSendsBlocks(t *testing.T) {
	var got slackPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	out := NewSlackChannel(0).Send(context.Background(), srv.URL, "Alerta", "Preço caiu", testProduct())
	if !out.Success {
		t.Fatalf("Send() = %+v", out)
	}
	if got.Text != "Alerta" {
		t.Errorf("fallback text = %q", got.Text)
	}
	// header, mensagem, campos e botão
	if len(got.Blocks) != 4 {
		t.Fatalf("blocks = %+v", got.Blocks)
	}
	if got.Blocks[0].Type != "header" || got.Blocks[3].Elements[0].URL != testProduct().ProductURL {
		t.Errorf("blocks = %+v", got.Blocks)
	}
	if !strings.Contains(got.Blocks[2].Fields[1].Text, "79.99") {
		t.Errorf("current price field = %q", got.Blocks[2].Fields[1].Text)
	}
}

func TestSlackWithoutProduct(t *testing.T) {
	var got slackPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	out := NewSlackChannel(0).Send(context.Background(), srv.URL, "Teste", "Mensagem de teste", nil)
	if !out.Success || len(got.Blocks) != 2 {
		t.Errorf("Send() = %+v, blocks = %d", out, len(got.Blocks))
	}
}

func TestPushoverPostsForm(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		form = r.PostForm
		w.Write([]byte(`{"status":1,"request":"abc"}`))
	}))
	defer srv.Close()

	ch := NewPushoverChannel(PushoverConfig{AppToken: "app-token", Endpoint: srv.URL})
	out := ch.Send(context.Background(), "user-key", "Alerta", "Preço caiu", testProduct())
	if !out.Success {
		t.Fatalf("Send() = %+v", out)
	}
	if form.Get("token") != "app-token" || form.Get("user") != "user-key" || form.Get("title") != "Alerta" {
		t.Errorf("form = %v", form)
	}
	if form.Get("url") != testProduct().ProductURL {
		t.Errorf("url = %q", form.Get("url"))
	}
}

func TestPushoverReportsAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":0,"errors":["user identifier is invalid"]}`))
	}))
	defer srv.Close()

	ch := NewPushoverChannel(PushoverConfig{AppToken: "app-token", Endpoint: srv.URL})
	out := ch.Send(context.Background(), "bad", "Alerta", "x", nil)
	if out.Success || out.Error != "user identifier is invalid" {
		t.Errorf("Send() = %+v", out)
	}
}

func TestPushoverNotConfigured(t *testing.T) {
	ch := NewPushoverChannel(PushoverConfig{})
	if ch.IsConfigured() {
		t.Fatal("IsConfigured() = true without token")
	}
	if out := ch.Send(context.Background(), "user-key", "Alerta", "x", nil); out.Success || out.Error != notConfigured {
		t.Errorf("Send() = %+v", out)
	}
}
