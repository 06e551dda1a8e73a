package source

import (
	"context"
	"fmt"
	"testing"
)

type fakePageFetcher struct {
	pages map[string][]byte
	fail  map[string]bool
}

func (f *fakePageFetcher) FetchPage(_ context.Context, url string) ([]byte, error) {
	if f.fail[url] {
		return nil, fmt.Errorf("%w: get %s", ErrPageUnavailable, url)
	}
	page, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("no page for %s", url)
	}
	return page, nil
}

const j1Page = `<html><body><table class="data_table">
<tr><th>開催日</th><th>K/O</th><th>節</th><th>ホーム</th><th>スコア</th><th>アウェイ</th><th>スタジアム</th></tr>
<tr><td>04/21（月）</td><td>19:00</td><td>第11節</td><td>鹿島アントラーズ</td><td>2-1</td><td>浦和レッズ</td><td>県立カシマ</td></tr>
<tr><td>04/22（火）</td><td>27:45</td><td>第11節</td><td>横浜F・マリノス</td><td>vs</td><td>ヴィッセル神戸</td><td>日産ス</td></tr>
<tr><td></td><td></td><td>中止</td><td></td><td></td><td></td><td></td></tr>
</table></body></html>`

func TestLeagueSiteAdapter_ExtractsRows(t *testing.T) {
	fetcher := &fakePageFetcher{pages: map[string][]byte{
		"https://example.test/j1": []byte(j1Page),
	}}
	adapter := NewLeagueSiteAdapter(fetcher, LeagueSiteAdapterConfig{
		DivisionURLs: map[string]string{"J1": "https://example.test/j1"},
		Year:         2025,
	})

	out := adapter.Fetch(context.Background())
	if out.State() != StateSuccess {
		t.Fatalf("state = %s, err = %v", out.State(), out.Err)
	}
	if len(out.Records) != 2 {
		t.Fatalf("expected 2 rows, got %d: %+v", len(out.Records), out.Records)
	}

	played := out.Records[0].(SiteARecord)
	if played.Division != "J1" || played.Year != 2025 {
		t.Fatalf("division/year not carried: %+v", played)
	}
	if played.HomeTeam != "鹿島アントラーズ" || played.AwayTeam != "浦和レッズ" {
		t.Fatalf("teams misread: %+v", played)
	}
	if played.ScoreText != "2-1" || played.SectionText != "第11節" {
		t.Fatalf("score/section misread: %+v", played)
	}

	upcoming := out.Records[1].(SiteARecord)
	if upcoming.TimeText != "27:45" {
		t.Fatalf("late kickoff text misread: %+v", upcoming)
	}
	if upcoming.ScoreText != "" || upcoming.HomeTeam != "横浜F・マリノス" || upcoming.AwayTeam != "ヴィッセル神戸" {
		t.Fatalf("unplayed row misread: %+v", upcoming)
	}
}

func TestLeagueSiteAdapter_FailedDivisionIsScope(t *testing.T) {
	fetcher := &fakePageFetcher{
		pages: map[string][]byte{"https://example.test/j1": []byte(j1Page)},
		fail:  map[string]bool{"https://example.test/j2": true},
	}
	adapter := NewLeagueSiteAdapter(fetcher, LeagueSiteAdapterConfig{
		DivisionURLs: map[string]string{
			"J1": "https://example.test/j1",
			"J2": "https://example.test/j2",
		},
		Year: 2025,
	})

	out := adapter.Fetch(context.Background())
	if out.State() != StatePartialFailure {
		t.Fatalf("state = %s", out.State())
	}
	if len(out.FailedScopes) != 1 || out.FailedScopes[0].Scope != "J2" {
		t.Fatalf("unexpected scopes: %+v", out.FailedScopes)
	}
}

const clubPage = `<html><body><table class="items"><tbody>
<tr><td>第33節</td><td>2025/04/26</td><td>21:00</td><td>H</td><td>3位</td><td><img src="x.png"></td><td>レンジャーズ</td><td>1-1</td></tr>
<tr><td>第34節</td><td>2025/05/03</td><td>23:30</td><td>A</td><td>1位</td><td><img src="y.png"></td><td>アバディーン</td><td></td></tr>
</tbody></table></body></html>`

func TestClubSiteAdapter_ExtractsRows(t *testing.T) {
	fetcher := &fakePageFetcher{pages: map[string][]byte{
		"https://example.test/celtic": []byte(clubPage),
	}}
	adapter := NewClubSiteAdapter(fetcher, ClubSiteAdapterConfig{
		URL:        "https://example.test/celtic",
		ClubName:   "セルティックFC",
		LeagueName: "スコットランド",
	})

	out := adapter.Fetch(context.Background())
	if out.State() != StateSuccess {
		t.Fatalf("state = %s, err = %v", out.State(), out.Err)
	}
	if len(out.Records) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(out.Records))
	}

	home := out.Records[0].(SiteBRecord)
	if !home.HomeGame || home.Opponent != "レンジャーズ" || home.ScoreText != "1-1" {
		t.Fatalf("home row misread: %+v", home)
	}
	if home.DateText != "2025/04/26" || home.TimeText != "21:00" {
		t.Fatalf("date/time misread: %+v", home)
	}

	away := out.Records[1].(SiteBRecord)
	if away.HomeGame || away.Opponent != "アバディーン" || away.ScoreText != "" {
		t.Fatalf("away row misread: %+v", away)
	}
}

func TestClubSiteAdapter_FetchFailureIsFullFailure(t *testing.T) {
	fetcher := &fakePageFetcher{fail: map[string]bool{"https://example.test/celtic": true}}
	adapter := NewClubSiteAdapter(fetcher, ClubSiteAdapterConfig{
		URL:      "https://example.test/celtic",
		ClubName: "セルティックFC",
	})

	out := adapter.Fetch(context.Background())
	if out.State() != StateFailure {
		t.Fatalf("state = %s", out.State())
	}
}
