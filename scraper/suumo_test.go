package scraper

import (
	"testing"

	"japanhouse/config"
)

func TestSuumoParseRentPage(t *testing.T) {
	h := NewSuumoHandler(&config.SiteConfig{ID: "suumo"}, nil)
	doc := loadDoc(t, "suumo_rent.html")

	raws := h.parseRentPage(doc, "https://suumo.jp/chintai/okayama/")
	if len(raws) != 2 {
		t.Fatalf("expected 2 rooms from one building cassette, got %d", len(raws))
	}

	first := raws[0]
	if first.GetString("title") != "グランドメゾン大元" {
		t.Fatalf("unexpected building title %q", first.GetString("title"))
	}
	if first.GetString("location") != "岡山県岡山市北区大元駅前" {
		t.Fatalf("unexpected location %q", first.GetString("location"))
	}
	if first.GetString("access") != "岡山電軌清輝橋線/大元駅 歩10分" {
		t.Fatalf("unexpected access %q", first.GetString("access"))
	}
	if first.GetString("price") != "6.5万円" {
		t.Fatalf("unexpected price %q", first.GetString("price"))
	}
	if first.GetString("admin_fees") != "3000円" {
		t.Fatalf("unexpected admin fees %q", first.GetString("admin_fees"))
	}
	if first.GetString("layout") != "2LDK" {
		t.Fatalf("unexpected layout %q", first.GetString("layout"))
	}
	if first.GetString("url") != "https://suumo.jp/chintai/jnc_000012345678/?bc=100123456789" {
		t.Fatalf("unexpected url %q", first.GetString("url"))
	}
	if first.GetString("floor") != "2階" {
		t.Fatalf("unexpected floor %q", first.GetString("floor"))
	}

	// Thumbnails live in a rel attribute while src points at a spinner.
	images := first.GetStrings("images")
	if len(images) != 1 || images[0] != "https://img01.suumo.com/front/gazo/bukken/010/12345.jpg" {
		t.Fatalf("expected rel attribute image, got %v", images)
	}

	second := raws[1]
	if second.GetString("title") != "グランドメゾン大元" {
		t.Fatalf("expected building fields shared across rooms, got %q", second.GetString("title"))
	}
	if second.GetString("price") != "7.2万円" {
		t.Fatalf("unexpected second room price %q", second.GetString("price"))
	}
	if second.GetString("layout") != "3DK" {
		t.Fatalf("unexpected second room layout %q", second.GetString("layout"))
	}
}

func TestSuumoParseSalePage(t *testing.T) {
	h := NewSuumoHandler(&config.SiteConfig{ID: "suumo"}, nil)
	doc := loadDoc(t, "suumo_buy.html")

	raws := h.parseSalePage(doc, "https://suumo.jp/jj/bukken/ichiran/")
	if len(raws) != 2 {
		t.Fatalf("expected 2 property units, got %d", len(raws))
	}

	first := raws[0]
	if first.GetString("title") != "岡山市北区 中古一戸建て 庭付き" {
		t.Fatalf("unexpected title %q", first.GetString("title"))
	}
	if first.GetString("price") != "1980万円" {
		t.Fatalf("unexpected price %q", first.GetString("price"))
	}
	if first.GetString("location") != "岡山県岡山市北区津島" {
		t.Fatalf("unexpected location %q", first.GetString("location"))
	}
	if first.GetString("layout") != "4LDK" {
		t.Fatalf("unexpected layout %q", first.GetString("layout"))
	}
	if first.GetString("year_built") != "1998年4月" {
		t.Fatalf("unexpected year %q", first.GetString("year_built"))
	}
	if first.GetString("url") != "https://suumo.jp/ms/chuko/okayama/sc_okayama/nc_98765432/" {
		t.Fatalf("unexpected url %q", first.GetString("url"))
	}
	images := first.GetStrings("images")
	if len(images) != 1 || images[0] != "https://img01.suumo.com/front/gazo/bukken/020/98765.jpg" {
		t.Fatalf("expected lazy-load thumbnail, got %v", images)
	}

	// Sparse unit still yields the fields it has.
	second := raws[1]
	if second.GetString("price") != "980万円" {
		t.Fatalf("unexpected second unit price %q", second.GetString("price"))
	}
	if second.GetString("layout") != "" {
		t.Fatalf("expected no layout on sparse unit, got %q", second.GetString("layout"))
	}
}

func TestSuumoParseRentPage_EmptyDocument(t *testing.T) {
	h := NewSuumoHandler(&config.SiteConfig{ID: "suumo"}, nil)
	doc := parseHTML(t, "<html><body><p>該当する物件がありません</p></body></html>")

	if raws := h.parseRentPage(doc, "https://suumo.jp/chintai/okayama/"); len(raws) != 0 {
		t.Fatalf("expected no listings, got %d", len(raws))
	}
}
