// Package credential はリクエストから認証トークンとテナントドメインを抽出する。
package credential

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/embedgate/internal/model"
)

// DefaultMaxBodyBytes はボディ読み取りの上限バイト数。
const DefaultMaxBodyBytes int64 = 1 << 20

// FieldNames は抽出に使うフィールド名を保持する。
// ドメインには代替名が存在しない。
type FieldNames struct {
	Token    string
	TokenAlt string
	Domain   string
}

// DefaultFieldNames はプラットフォーム標準のフィールド名を返す。
// APP_SIDはプラットフォームのセッションIDで、AUTH_IDの代替として扱う。
func DefaultFieldNames() FieldNames {
	return FieldNames{
		Token:    model.FieldToken,
		TokenAlt: "APP_SID",
		Domain:   model.FieldDomain,
	}
}

// Config は抽出器の設定。
type Config struct {
	Fields       FieldNames
	MaxBodyBytes int64
}

// Extractor はクエリ文字列、フォームボディ、JSONボディの順に
// トークンとドメインを探索する。状態を持たない。
type Extractor struct {
	fields       FieldNames
	maxBodyBytes int64
}

// NewExtractor はExtractorを生成する。未設定の項目はデフォルト値で補う。
func NewExtractor(cfg Config) *Extractor {
	defaults := DefaultFieldNames()
	fields := cfg.Fields
	if fields.Token == "" {
		fields.Token = defaults.Token
	}
	if fields.TokenAlt == "" {
		fields.TokenAlt = defaults.TokenAlt
	}
	if fields.Domain == "" {
		fields.Domain = defaults.Domain
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	return &Extractor{fields: fields, maxBodyBytes: maxBody}
}

// Extract はリクエストからCredentialを抽出する。
// トークンは クエリ(正規) → クエリ(代替) → フォーム(正規) → フォーム(代替) →
// JSON(正規) → JSON(代替) の順で探索し、最初に見つかった空でない値を採用する。
// ドメインは同じソース順で正規名のみを探索する。
// いずれかが見つからない場合はIncompleteを返す。
// JSONボディが構文的に不正な場合は、ボディが存在しないものとして扱う。
func (e *Extractor) Extract(r *http.Request) (model.Credential, *model.Incomplete) {
	src := newRequestSources(r, e.maxBodyBytes)

	token := firstNonEmpty(
		func() string { return src.query().Get(e.fields.Token) },
		func() string { return src.query().Get(e.fields.TokenAlt) },
		func() string { return src.form().Get(e.fields.Token) },
		func() string { return src.form().Get(e.fields.TokenAlt) },
		func() string { return src.jsonField(e.fields.Token) },
		func() string { return src.jsonField(e.fields.TokenAlt) },
	)
	domain := firstNonEmpty(
		func() string { return src.query().Get(e.fields.Domain) },
		func() string { return src.form().Get(e.fields.Domain) },
		func() string { return src.jsonField(e.fields.Domain) },
	)

	if token == "" || domain == "" {
		return model.Credential{}, &model.Incomplete{
			MissingToken:  token == "",
			MissingDomain: domain == "",
		}
	}
	return model.Credential{Token: token, Domain: domain}, nil
}

// firstNonEmpty は候補を順に評価し、最初の空でない値を返す。
// 値が見つかった時点で以降の候補は評価しない。
func firstNonEmpty(candidates ...func() string) string {
	for _, candidate := range candidates {
		if v := strings.TrimSpace(candidate()); v != "" {
			return v
		}
	}
	return ""
}

// requestSources はリクエストの各ソースを必要になった時点で1回だけ解析する。
type requestSources struct {
	r            *http.Request
	maxBodyBytes int64

	queryValues url.Values

	bodyRead bool
	body     []byte
	isForm   bool

	formParsed bool
	formValues url.Values

	jsonParsed bool
	jsonObject map[string]any
}

func newRequestSources(r *http.Request, maxBodyBytes int64) *requestSources {
	return &requestSources{r: r, maxBodyBytes: maxBodyBytes}
}

func (s *requestSources) query() url.Values {
	if s.queryValues == nil {
		s.queryValues = s.r.URL.Query()
	}
	return s.queryValues
}

// readBody はボディを上限付きで読み取り、後続ハンドラーのためにリクエストへ戻す。
// 上限を超えた残りは読み取らずに元のボディから続けて読めるようにする。
func (s *requestSources) readBody() {
	if s.bodyRead {
		return
	}
	s.bodyRead = true

	ct, _, _ := mime.ParseMediaType(s.r.Header.Get("Content-Type"))
	s.isForm = ct == "application/x-www-form-urlencoded" || ct == "multipart/form-data"

	// ParseForm済みのリクエストはボディが消費されているため、PostFormを使う
	if s.r.PostForm != nil {
		return
	}
	if s.r.Body == nil || s.r.Body == http.NoBody {
		return
	}

	data, err := io.ReadAll(io.LimitReader(s.r.Body, s.maxBodyBytes))
	if err != nil {
		slog.Warn("failed to read request body", slog.String("error", err.Error()))
	}
	s.body = data
	s.r.Body = &replayBody{
		Reader: io.MultiReader(bytes.NewReader(data), s.r.Body),
		closer: s.r.Body,
	}
}

// replayBody は読み取り済みの先頭部分と未読の残りを連結したボディ。
type replayBody struct {
	io.Reader
	closer io.Closer
}

func (b *replayBody) Close() error {
	return b.closer.Close()
}

func (s *requestSources) form() url.Values {
	if s.formParsed {
		return s.formValues
	}
	s.formParsed = true
	s.readBody()

	if !s.isForm {
		s.formValues = url.Values{}
		return s.formValues
	}
	if s.r.PostForm != nil {
		s.formValues = s.r.PostForm
		return s.formValues
	}
	s.formValues = parseFormBody(s.r.Header.Get("Content-Type"), s.body, s.maxBodyBytes)
	return s.formValues
}

// jsonField はJSONオブジェクトの文字列フィールドを返す。
// 文字列以外の値は無視する。
func (s *requestSources) jsonField(name string) string {
	if !s.jsonParsed {
		s.jsonParsed = true
		s.readBody()
		if !s.isForm && len(bytes.TrimSpace(s.body)) > 0 {
			var obj map[string]any
			if err := json.Unmarshal(s.body, &obj); err != nil {
				slog.Debug("ignoring malformed structured body", slog.String("error", err.Error()))
			} else {
				s.jsonObject = obj
			}
		}
	}
	v, _ := s.jsonObject[name].(string)
	return v
}

// parseFormBody はフォームボディを解析する。multipartの場合は一時的なリクエストで解析する。
func parseFormBody(contentType string, body []byte, maxBodyBytes int64) url.Values {
	values := url.Values{}
	if len(body) == 0 {
		return values
	}

	ct, _, _ := mime.ParseMediaType(contentType)
	if ct == "multipart/form-data" {
		tmp, err := http.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
		if err != nil {
			return values
		}
		tmp.Header.Set("Content-Type", contentType)
		if err := tmp.ParseMultipartForm(maxBodyBytes); err != nil {
			slog.Debug("ignoring malformed multipart body", slog.String("error", err.Error()))
			return values
		}
		defer tmp.MultipartForm.RemoveAll()
		return url.Values(tmp.MultipartForm.Value)
	}

	parsed, err := url.ParseQuery(string(body))
	if err != nil {
		slog.Debug("ignoring malformed form body", slog.String("error", err.Error()))
		return parsed
	}
	return parsed
}
