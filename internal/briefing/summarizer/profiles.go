package summarizer

import (
	"errors"
	"fmt"
	"time"

	"github.com/RobinCoderZhao/nk-briefing/pkg/i18n"
)

// DefaultLanguage is the base profile used for unknown codes.
const DefaultLanguage = i18n.LangKO

// Markers separating title and body in the model response.
const (
	TitleMarker = "제목: "
	BodyMarker  = "본문: "
)

// LanguageProfile is the static per-language configuration. This table is
// the only place category IDs and publish times are defined.
type LanguageProfile struct {
	Code               i18n.Language `json:"code"`
	PersonaName        string        `json:"persona_name"`
	SystemPrompt       string        `json:"-"`
	UserPromptTemplate string        `json:"-"`
	TitleMarker        string        `json:"-"`
	BodyMarker         string        `json:"-"`
	CategoryID         int           `json:"category_id"`
	PublishWeekday     time.Weekday  `json:"publish_weekday"`
	PublishHour        int           `json:"publish_hour"`
}

func systemPrompt(persona string) string {
	return "당신은 " + persona + " 한국어 뉴스 기자입니다. 북한 관련 뉴스를 정확하고 객관적으로 작성하세요."
}

func userPrompt(titleRule, bodyRule string) string {
	return "다음 요구사항에 맞춰 작성해주세요:\n" +
		"1. " + titleRule + "\n" +
		"2. " + bodyRule + "\n" +
		"3. 제목과 본문을 `제목: [제목]`과 `본문: [본문]` 형식으로 구분해주세요.\n" +
		"4. 본문은 HTML을 사용해 깔끔하게 작성해주세요.\n\n"
}

func profile(code i18n.Language, persona string, category, hour int, titleRule, bodyRule string) LanguageProfile {
	return LanguageProfile{
		Code:               code,
		PersonaName:        persona,
		SystemPrompt:       systemPrompt(persona),
		UserPromptTemplate: userPrompt(titleRule, bodyRule),
		TitleMarker:        TitleMarker,
		BodyMarker:         BodyMarker,
		CategoryID:         category,
		PublishWeekday:     time.Monday,
		PublishHour:        hour,
	}
}

// profiles are published as one series on the same weekday, one per hour.
var profiles = []LanguageProfile{
	profile(i18n.LangKO, "긍정적 관점", 1188101, 7,
		"내용을 한 문장으로 요약하는 '북한 경제, 예상보다 성장세! 통계로 본 희망 신호'와 같은 제목을 생성해주세요.",
		"북한의 최근 생산량 증가나 특정 산업의 발전을 중심으로 서술하고, 북한 경제의 긍정적인 측면을 부각하여 희망적인 톤으로 본문을 작성해주세요."),
	profile(i18n.LangEN, "부정적 관점", 1188102, 8,
		"내용을 한 문장으로 요약하는 '북한 경제 성장률, 숨겨진 그림자는? 통계 이면의 현실'과 같은 제목을 생성해주세요.",
		"식량난, 무역 적자, 경제난 등의 데이터를 중심으로 서술하고, 북한 경제의 부정적인 측면을 강조하여 비판적인 톤으로 본문을 작성해주세요."),
	profile(i18n.LangZH, "미래 예측", 1188103, 9,
		"내용을 한 문장으로 요약하는 '데이터로 예측하는 5년 뒤 북한 경제의 모습'과 같은 제목을 생성해주세요.",
		"가능한 시나리오를 제시하고, 현재 데이터를 바탕으로 북한 경제의 향후 5년 변화를 예측하는 본문을 작성해주세요."),
	profile(i18n.LangJA, "대외 관계", 1188104, 10,
		"내용을 한 문장으로 요약하는 '북한 경제 성장이 남북 관계에 미치는 영향은?'과 같은 제목을 생성해주세요.",
		"경제 데이터를 정치적 맥락과 연결하여 설명하고, 북한 경제 성장이 남북 관계나 국제 정세에 미치는 영향을 분석하는 본문을 작성해주세요."),
	profile(i18n.LangRU, "카드 뉴스 형식", 1188105, 11,
		"내용을 한 문장으로 요약하는 '30초 만에 끝내는 북한 경제 핵심 브리핑'과 같은 제목을 생성해주세요.",
		"각 문장이 짧고 명확하게 구성되도록 하고, 핵심 데이터만 뽑아서 간결하게 정리하는 카드 뉴스 형식의 본문을 작성해주세요."),
	profile(i18n.LangDE, "심층 분석", 1188106, 12,
		"내용을 한 문장으로 요약하는 '북한의 식량 생산량, 통계의 진실은?'과 같은 제목을 생성해주세요.",
		"세부적인 수치와 배경을 상세히 설명하고, 특정 데이터(예: 농업 생산량, 에너지 수급) 하나를 선택하여 심층적으로 분석하는 전문가 스타일의 본문을 작성해주세요."),
	profile(i18n.LangFR, "Q&A 형식", 1188107, 13,
		"내용을 한 문장으로 요약하는 '북한 경제에 대한 궁금증 5가지, 데이터를 통해 답하다'와 같은 제목을 생성해주세요.",
		"독자들이 궁금해할 만한 북한 경제 관련 질문 3~4개를 선정하고, 데이터에 근거하여 답변하는 Q&A 형식의 본문을 작성해주세요."),
	profile(i18n.LangES, "인포그래픽 설명", 1188108, 14,
		"내용을 한 문장으로 요약하는 '인포그래픽으로 보는 북한 경제 현황'과 같은 제목을 생성해주세요.",
		"데이터의 주요 포인트들을 명확한 문장으로 요약하고, 복잡한 통계 데이터를 시각적으로 설명하는 인포그래픽을 위한 본문을 작성해주세요."),
	profile(i18n.LangAR, "초보자용", 1188109, 15,
		"내용을 한 문장으로 요약하는 '북한 경제, 10분 만에 이해하기'와 같은 제목을 생성해주세요.",
		"북한 경제에 대해 전혀 모르는 초보자를 대상으로, 어려운 용어 없이 쉽고 재미있게 풀어 설명하는 본문을 작성해주세요."),
	profile(i18n.LangHI, "전문가용", 1188110, 16,
		"내용을 한 문장으로 요약하는 '북한 경제 데이터 분석 보고서'와 같은 제목을 생성해주세요.",
		"세부적인 통계 수치를 인용하고, 정책적 함의를 논하는 내용을 포함하여, 북한 전문가나 연구자를 위한 심도 깊은 분석 본문을 작성해주세요."),
	profile(i18n.LangVI, "흥미 위주", 1188111, 17,
		"내용을 한 문장으로 요약하는 '북한에서 가장 잘 나가는 핫템은?'과 같이 독특한 제목을 생성해주세요.",
		"흥미롭고 자극적인 제목과 내용을 포함하여 독자의 호기심을 유발하는 본문을 작성해주세요."),
	profile(i18n.LangID, "결론 및 종합", 1188112, 18,
		"내용을 한 문장으로 요약하는 하루 동안의 시리즈를 마무리하는 느낌으로, '오늘의 북한 경제: 데이터가 우리에게 말하는 것은?'과 같은 제목을 생성해주세요.",
		"오늘 다룬 북한 경제 데이터의 모든 내용을 종합하고, 그 의미와 시사점을 분석하는 최종 결론 본문을 작성해주세요."),
}

var profileByCode = func() map[i18n.Language]LanguageProfile {
	m := make(map[i18n.Language]LanguageProfile, len(profiles))
	for _, p := range profiles {
		m[p.Code] = p
	}
	return m
}()

// Profiles returns all profiles in publishing order.
func Profiles() []LanguageProfile {
	out := make([]LanguageProfile, len(profiles))
	copy(out, profiles)
	return out
}

// Lookup returns the profile for code.
func Lookup(code string) (LanguageProfile, bool) {
	p, ok := profileByCode[i18n.Normalize(code)]
	return p, ok
}

// ProfileFor returns the profile for code, or the DefaultLanguage profile.
func ProfileFor(code string) LanguageProfile {
	if p, ok := Lookup(code); ok {
		return p
	}
	return profileByCode[DefaultLanguage]
}

// Supported reports whether code has a profile.
func Supported(code string) bool {
	_, ok := Lookup(code)
	return ok
}

// ParseCodes normalizes user supplied codes, dropping blanks and duplicates.
// An unsupported code or an empty result is an error.
func ParseCodes(list []string) ([]string, error) {
	seen := make(map[string]bool, len(list))
	var codes []string
	for _, raw := range list {
		code := string(i18n.Normalize(raw))
		if code == "" || seen[code] {
			continue
		}
		if !Supported(code) {
			return nil, fmt.Errorf("unsupported language: %q", raw)
		}
		seen[code] = true
		codes = append(codes, code)
	}
	if len(codes) == 0 {
		return nil, errors.New("no language given")
	}
	return codes, nil
}

// Codes lists the supported language codes in publishing order.
func Codes() []string {
	codes := make([]string, len(profiles))
	for i, p := range profiles {
		codes[i] = string(p.Code)
	}
	return codes
}

// Categories returns the language to blog category map derived from the
// profile table, with per-code overrides applied. A zero override removes
// the mapping.
func Categories(overrides map[string]int) map[string]int {
	out := make(map[string]int, len(profiles))
	for _, p := range profiles {
		out[string(p.Code)] = p.CategoryID
	}
	for code, id := range overrides {
		code = string(i18n.Normalize(code))
		if id == 0 {
			delete(out, code)
			continue
		}
		out[code] = id
	}
	return out
}
