package v4

import "github.com/IzacPS/conecta-sei-backend/internal/interfaces"

// Family-level default selector tables for the v4 upstream generation.
// Version plugins start from these and override only what shifted between
// releases.

// DefaultLoginSelectors locates the v4 login form
func DefaultLoginSelectors() interfaces.LoginSelectors {
	return interfaces.LoginSelectors{
		Email:    "#txtEmail",
		Password: "#pwdSenha",
		Submit:   "#sbmLogin",
		Error:    "#divInfraMsg, .alert-danger",
		LoggedIn: "#lnkUsuarioSistema, #lnkInfraSair",
	}
}

// DefaultProcessSelectors locates the v4 process listing and process view
func DefaultProcessSelectors() interfaces.ProcessSelectors {
	return interfaces.ProcessSelectors{
		ListTable:        "#tblDocumentos",
		ListRows:         "#tblDocumentos tbody tr",
		ListLink:         `td[align="center"] a`,
		LocationBar:      "#divInfraBarraLocalizacao",
		IntegralKeywords: []string{"Visualização Integral"},
		PartialKeywords:  []string{"Acesso Parcial", "Visualização Parcial"},
		AuthorityCell:    "#tblDocumentos tbody tr:nth-child(2) td:nth-child(5) a",
		Loading:          "#divCarregando, .loading",
	}
}

// DefaultDocumentSelectors locates the v4 document table
func DefaultDocumentSelectors() interfaces.DocumentSelectors {
	return interfaces.DocumentSelectors{
		Table:      "#tblDocumentos",
		Rows:       "#tblDocumentos tr.infraTrClara",
		NumberCell: "td:nth-child(2) a",
		TypeCell:   "td:nth-child(3)",
		DateCell:   "td:nth-child(4)",
		SignerCell: "td:nth-child(5)",
	}
}
