package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/joelikes8/Random-bot/internal/analytics"
	"github.com/joelikes8/Random-bot/internal/config"
	"github.com/joelikes8/Random-bot/internal/modules/audit"
	"github.com/joelikes8/Random-bot/internal/roblox"
	"github.com/joelikes8/Random-bot/internal/storage"
	"github.com/joelikes8/Random-bot/internal/utils"
	"github.com/joelikes8/Random-bot/internal/verification"
)

func TestProfileCacheExpires(t *testing.T) {
	cache, err := newProfileCache(4, 5*time.Minute)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Add("555", roblox.Profile{ID: "555", Name: "RealPlayer123"})
	if got, ok := cache.Get("555"); !ok || got.Name != "RealPlayer123" {
		t.Fatalf("expected cached profile, got %+v %v", got, ok)
	}

	now = now.Add(6 * time.Minute)
	if _, ok := cache.Get("555"); ok {
		t.Fatalf("expected expired entry")
	}
	if cache.cache.Contains("555") {
		t.Fatalf("expired entry should be removed")
	}
}

func TestProfileCacheDisabled(t *testing.T) {
	cache, err := newProfileCache(0, 0)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	cache.Add("1", roblox.Profile{ID: "1"})
	if _, ok := cache.Get("1"); ok {
		t.Fatalf("zero ttl disables caching")
	}
}

func TestOptionString(t *testing.T) {
	options := []*discordgo.ApplicationCommandInteractionDataOption{
		{Name: "period", Type: discordgo.ApplicationCommandOptionString, Value: "week"},
		{Name: "roblox_username", Type: discordgo.ApplicationCommandOptionString, Value: "  RealPlayer123 "},
	}
	if got := optionString(options, "roblox_username"); got != "RealPlayer123" {
		t.Fatalf("expected trimmed username, got %q", got)
	}
	if got := optionString(options, "missing"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestInteractionUserID(t *testing.T) {
	guild := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{Member: &discordgo.Member{User: &discordgo.User{ID: "1"}}}}
	if got := interactionUserID(guild); got != "1" {
		t.Fatalf("expected member id, got %q", got)
	}
	dm := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{User: &discordgo.User{ID: "2"}}}
	if got := interactionUserID(dm); got != "2" {
		t.Fatalf("expected user id, got %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := nickname("short"); got != "short" {
		t.Fatalf("unexpected %q", got)
	}
	long := strings.Repeat("x", 40)
	if got := nickname(long); len([]rune(got)) != maxNickname || !strings.HasSuffix(got, "...") {
		t.Fatalf("unexpected truncation %q", got)
	}
}

func TestInstructionsEmbed(t *testing.T) {
	b := &Bot{cfg: config.DefaultConfig()}
	embed := b.instructionsEmbed(verification.Request{
		Code:       "AB12CD",
		Resolution: verification.Resolution{AccountID: "555", Username: "RealPlayer123", Via: verification.ViaPrimary},
	})
	if !strings.Contains(embed.Description, "AB12CD") {
		t.Fatalf("instructions must include the code: %q", embed.Description)
	}
	if embed.Fields[2].Value != "https://www.roblox.com/users/555/profile" {
		t.Fatalf("unexpected profile link %q", embed.Fields[2].Value)
	}
}

func TestBuildAuditEmbed(t *testing.T) {
	b := &Bot{cfg: config.DefaultConfig()}
	embed := b.buildAuditEmbed(storage.AuditLog{Level: "CRIT", Event: verification.EventPersistenceFail, CreatedAt: time.Now()})
	if embed.Color != b.cfg.Notifications.EmbedColors.Error {
		t.Fatalf("critical entries use the error color")
	}
	if embed.Fields[0].Value != "Storage failure" || embed.Fields[2].Value != "system" {
		t.Fatalf("unexpected fields %+v %+v", embed.Fields[0], embed.Fields[2])
	}
}

func TestFormatEventCounts(t *testing.T) {
	got := formatEventCounts(map[string]int{
		verification.EventRequested:      3,
		verification.EventPolicyOverride: 5,
	})
	want := "Policy override applied: 5\nVerification requested: 3"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if formatReport(analytics.Report{Total: 2, ByLevel: map[string]int{"WARN": 2}}) != "Total: 2 | INFO: 0 | WARN: 2 | CRIT: 0" {
		t.Fatalf("unexpected report summary")
	}
}

func TestInfoEmbedLabelsForcedOverride(t *testing.T) {
	b := &Bot{cfg: config.DefaultConfig()}
	profile := roblox.Profile{ID: "1", Name: "TestUser1", Description: "hi"}

	plain := b.infoEmbed(verification.Resolution{AccountID: "1", Username: "TestUser1", Via: verification.ViaPrimary}, profile)
	if plain.Title != "Roblox user" || plain.Fields[0].Name == "Note" {
		t.Fatalf("regular lookups carry no override note: %+v", plain)
	}

	forced := b.infoEmbed(verification.Resolution{AccountID: "1", Username: "ghost-player", Via: verification.ViaFallback}, profile)
	if forced.Title != "Roblox user (test identity)" {
		t.Fatalf("unexpected title %q", forced.Title)
	}
	if forced.Fields[0].Name != "Note" || !strings.Contains(forced.Fields[0].Value, "ghost-player") {
		t.Fatalf("forced lookups must be labelled, got %+v", forced.Fields[0])
	}
	if forced.Color != b.cfg.Notifications.EmbedColors.Warning {
		t.Fatalf("forced lookups use the warning color")
	}
}

func TestInfoOverrideIsAudited(t *testing.T) {
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	core, recorded := observer.New(zapcore.WarnLevel)
	b := &Bot{cfg: config.DefaultConfig(), audit: audit.NewLogger(store, zap.NewNop())}
	ctx := context.Background()

	b.auditInfoOverride(ctx, zap.New(core), "u1", "sysbloxluv", verification.Resolution{AccountID: "2470023", Via: verification.ViaOverride})
	b.auditInfoOverride(ctx, zap.New(core), "u1", "ghost-player", verification.Resolution{AccountID: "1", Via: verification.ViaFallback})

	logs, err := store.ListAuditLogs(ctx, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(logs) != 1 || logs[0].Event != verification.EventPolicyOverride || logs[0].Level != audit.LevelWarn {
		t.Fatalf("expected one policy_override entry, got %+v", logs)
	}
	if !strings.Contains(logs[0].Details, "stage=info") {
		t.Fatalf("unexpected details %q", logs[0].Details)
	}
	if recorded.Len() != 1 {
		t.Fatalf("expected one warn line, got %d", recorded.Len())
	}
}

func TestCloseWaitsForSweeper(t *testing.T) {
	b := &Bot{
		logger:   zap.NewNop(),
		cooldown: utils.NewCooldown(1, time.Minute),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go b.sweepCooldowns()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	b.Close(ctx)

	select {
	case <-b.done:
	default:
		t.Fatalf("Close returned before the sweeper exited")
	}
}

func TestCloseHonoursContext(t *testing.T) {
	core, recorded := observer.New(zapcore.WarnLevel)
	b := &Bot{
		logger: zap.New(core),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b.Close(ctx)
	if recorded.Len() != 1 {
		t.Fatalf("expected a shutdown timeout warning, got %d", recorded.Len())
	}
}
