package dictionary

// Default returns the built-in vocabulary. It mirrors configs/keywords.yaml
// and is used when no dictionary file is configured, and by tests.
func Default() *Dictionary {
	d := &Dictionary{
		Positive: []SignalCategory{
			{Category: "plantao", Weight: 0.30, Keywords: []string{
				"plantao", "plantoes", "vaga", "vagas", "escala", "cobertura",
				"sobreaviso", "fixo", "avulso",
			}},
			{Category: "hospital", Weight: 0.20, Keywords: []string{
				"hospital", "upa", "pronto socorro", "pronto atendimento",
				"santa casa", "clinica", "maternidade", "unidade", "hosp",
			}},
			{Category: "especialidade", Weight: 0.15, Keywords: []string{
				"clinica medica", "pediatria", "ginecologia", "obstetricia",
				"ortopedia", "cardiologia", "cirurgia geral", "anestesiologia",
				"psiquiatria", "emergencia", "uti", "generalista",
			}},
			{Category: "valor", Weight: 0.20, Keywords: []string{
				"r$", "reais", "valor", "pagamento", "remuneracao", "a combinar",
			}},
			{Category: "urgencia", Weight: 0.15, Keywords: []string{
				"urgente", "urgencia", "hoje", "amanha", "vaga aberta",
				"ultima vaga", "preciso", "cobertura imediata",
			}},
		},
		Negative: []SignalCategory{
			{Category: "saudacao", Keywords: []string{
				"bom dia pessoal", "boa tarde pessoal", "boa noite pessoal",
				"bom dia a todos", "boa tarde a todos", "boa noite a todos",
				"ola pessoal", "oi pessoal", "bom dia grupo", "bom dia galera",
			}},
			{Category: "agradecimento", Keywords: []string{
				"obrigado", "obrigada", "valeu", "gratidao", "agradeco",
			}},
			{Category: "risada", Keywords: []string{
				"kkk", "kkkk", "rsrs", "haha", "hehe", "hahaha",
			}},
			{Category: "pergunta_generica", Keywords: []string{
				"alguem sabe", "alguem tem", "alguem conhece", "como faco",
				"o que acham", "alguem ai",
			}},
		},
		JobKeywords: []string{
			"plantao", "plantoes", "vaga", "vagas", "escala", "hospital",
			"cobertura", "upa", "sobreaviso",
		},
		Sections: map[string]SectionCue{
			"local": {
				Emojis:   []string{"📍", "🏥", "🏨"},
				Keywords: []string{"local", "hospital", "endereco", "unidade", "onde"},
			},
			"date": {
				Emojis:   []string{"📅", "🗓", "📆"},
				Keywords: []string{"data", "datas", "dia", "dias", "quando"},
			},
			"value": {
				Emojis:   []string{"💰", "💵", "💲"},
				Keywords: []string{"valor", "valores", "pagamento", "remuneracao", "r$"},
			},
			"contact": {
				Emojis:   []string{"📞", "📲", "☎", "📱"},
				Keywords: []string{"contato", "whatsapp", "falar com", "interessados", "chamar"},
			},
			"specialty": {
				Emojis:   []string{"🩺", "⚕"},
				Keywords: []string{"especialidade", "area", "atuacao"},
			},
		},
		HospitalPrefixes: []string{
			"hospital", "hosp", "upa", "santa casa", "pronto socorro",
			"pronto atendimento", "clinica", "maternidade", "unidade", "hm", "ph",
		},
		Specialties: []string{
			"clinica medica", "pediatria", "ginecologia", "obstetricia",
			"ortopedia", "cardiologia", "cirurgia geral", "anestesiologia",
			"psiquiatria", "emergencia", "uti", "dermatologia", "neurologia",
			"oftalmologia", "generalista",
		},
		Periods: map[string][]string{
			"manha":       {"manha", "matutino"},
			"tarde":       {"tarde", "vespertino"},
			"noite":       {"noite"},
			"diurno":      {"diurno"},
			"noturno":     {"noturno"},
			"cinderela":   {"cinderela"},
			"plantao_24h": {"24h", "24 horas", "plantao 24"},
		},
		Weekdays: map[string]int{
			"domingo": 0, "dom": 0,
			"segunda": 1, "segunda-feira": 1, "seg": 1, "2a": 1,
			"terca": 2, "terca-feira": 2, "ter": 2, "3a": 2,
			"quarta": 3, "quarta-feira": 3, "qua": 3, "4a": 3,
			"quinta": 4, "quinta-feira": 4, "qui": 4, "5a": 4,
			"sexta": 5, "sexta-feira": 5, "sex": 5, "6a": 5,
			"sabado": 6, "sab": 6,
		},
		ImplausibleHospitals: []string{
			"farmacia", "mercado", "supermercado", "loja", "shopping", "casa",
			"apartamento", "escritorio", "academia", "padaria", "restaurante",
			"clinica medica", "pediatria", "ginecologia", "ortopedia",
			"cardiologia", "plantao", "vaga", "urgente", "valor", "contato",
		},
	}
	d.normalize()
	return d
}
