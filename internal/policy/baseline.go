package policy

// baselineLiterals are prohibited terms matched as case-insensitive
// substrings. Substring matching catches inflected forms ("дура" inside
// "дурацкий") at the price of false positives inside unrelated words.
var baselineLiterals = []string{
	// appearance
	"урод", "уродина", "уродство",
	"дебил", "дебилка", "дебильный",
	"идиот", "идиотка", "идиотский",
	"дурак", "дура", "дурацкий", "дурость",
	"тупой", "тупая", "тупость",
	"кретин", "кретинка",
	"моральный урод",

	// intellect
	"тупица", "тупоголовый",
	"безмозглый", "безмозглая",
	"тупорылый",
	"недоразвитый",

	// character
	"сволочь", "сволочи",
	"подонок", "подонки",
	"мразь", "мрази",
	"гад", "гадина",
	"тварь",
	"скотина",
	"животное",
	"отброс",
	"отморозок",

	// animal comparisons
	"козел", "козлина",
	"осел", "ослица",
	"свинья",
	"собака",
	"крыса",
	"змея",

	// profanity, also covered by obfuscation patterns
	"блядь", "бля",
	"хуй", "хуйня",
	"пизда", "пиздец",
	"ебанутый", "ебать",
	"говно",
	"заебись",
	"ублюдок",

	// family
	"мать твою",
	"твою мать",
	"твою мамашу",

	// humiliation
	"ничтожество",
	"ничего не стоишь",
	"никчемный",
	"бесполезный",
	"никому не нужен",

	// threats
	"убью", "убить",
	"задушу", "задушить",
	"изобью", "избить",
	"порву", "порвать",

	// ethnic slurs
	"черножопый",
	"чурка",
	"хач",

	// gendered slurs
	"шлюха",
	"проститутка",
	"сука",
	"сукин сын",
}

// baselinePatterns catch obfuscated spellings: letters swapped for '*' or
// '@', or split by whitespace.
var baselinePatterns = []string{
	`б[л*@]`,
	`б[л*@][я*@]д`,
	`х[у*@]й`,
	`п[и*@]зд`,
	`е[б*@]а`,
	`г[о*@]вн`,
	`з[а@*]б[и*@]сь`,
	`у[б*@]люд`,

	`д[е*@]б[и*@]л`,
	`и[д*@]и[о*@]т`,
	`к[р*@]ет[и*@]н`,
	`т[у*@]п[о*@]й`,

	`[бБ][*@]`,
	`[хХ][*@]`,
	`[пП][*@]`,
	`[сС][у*@]к`,

	`б\s*л\s*я\s*д`,
	`х\s*у\s*й`,
}

var baseline = buildBaseline()

func buildBaseline() *RuleSet {
	rules := make([]Rule, 0, len(baselineLiterals)+len(baselinePatterns))
	for _, w := range baselineLiterals {
		rules = append(rules, MustLiteral(w))
	}
	for _, p := range baselinePatterns {
		rules = append(rules, MustPattern(p))
	}
	return NewRuleSet(rules...)
}

// Baseline returns the built-in rule set.
func Baseline() *RuleSet {
	return baseline
}
