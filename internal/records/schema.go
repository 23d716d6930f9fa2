package records

import (
	"fmt"
	"strings"

	"lovemoney/internal/core"
	"lovemoney/internal/docstore"
)

// Collection names under usuarios/{uid}.
const (
	collUsers         = "usuarios"
	CollExpenses      = "gastos"
	CollSubscriptions = "assinaturas"
	CollBoletos       = "boletos"
	CollPix           = "pix"
	CollFinancing     = "financiamentos"
	CollLoans         = "emprestimos"
	CollCards         = "cartoes"
	CollCardCharges   = "gastos"
)

// Stored field names.
const (
	FieldDescription   = "descricao"
	FieldAmount        = "valor"
	FieldAmountLegacy  = "valorParcela"
	FieldCategory      = "categoria"
	FieldDate          = "data"
	FieldDueDate       = "dataPagamento"
	FieldPaymentDay    = "diaPagamento"
	FieldCreatedAt     = "criadoEm"
	FieldGroupKey      = "chaveUnica"
	FieldSequence      = "parcela"
	FieldTotal         = "parcelasTotais"
	FieldTotalLegacy   = "totalParcelas"
	FieldService       = "servico"
	FieldRecurring     = "recorrente"
	FieldCancelledAt   = "canceladaEm"
	FieldBeneficiary   = "beneficiario"
	FieldBank          = "banco"
	FieldFinancingType = "financiamento"
	FieldNickname      = "apelido"
	FieldClosingDay    = "fechamento"
	FieldDueDay        = "vencimento"
	FieldType          = "tipo"
)

// Values written to the tipo field. Only TipoCardSubscription is read back:
// it separates subscriptions from purchases inside a card's collection.
const (
	TipoExpense          = "Compra Única"
	TipoSubscription     = "Assinatura"
	TipoCardSubscription = "assinaturas"
	TipoCardCharge       = "Cartão de Crédito"
	TipoBoleto           = "Boleto Parcelado"
	TipoPix              = "Pix Parcelado"
	TipoFinancing        = "Financiamentos"
	TipoLoan             = "Empréstimos"
)

var kindCollections = map[core.Kind]string{
	core.KindExpense:          CollExpenses,
	core.KindSubscription:     CollSubscriptions,
	core.KindBoleto:           CollBoletos,
	core.KindPix:              CollPix,
	core.KindFinancing:        CollFinancing,
	core.KindLoan:             CollLoans,
	core.KindCardCharge:       CollCardCharges,
	core.KindCardSubscription: CollCardCharges,
}

var kindTipos = map[core.Kind]string{
	core.KindExpense:          TipoExpense,
	core.KindSubscription:     TipoSubscription,
	core.KindCardSubscription: TipoCardSubscription,
	core.KindCardCharge:       TipoCardCharge,
	core.KindBoleto:           TipoBoleto,
	core.KindPix:              TipoPix,
	core.KindFinancing:        TipoFinancing,
	core.KindLoan:             TipoLoan,
}

// DateField is the field holding the date a kind is judged by.
func DateField(kind core.Kind) string {
	switch {
	case kind.IsSubscription():
		return FieldPaymentDay
	case kind.IsInstallment():
		return FieldDueDate
	}
	return FieldDate
}

// Ref addresses one stored record.
type Ref struct {
	Kind   core.Kind
	ID     string
	CardID string // card-scoped kinds only
}

func (r Ref) Validate() error {
	if !r.Kind.Valid() {
		return core.Invalid("kind", core.ErrUnknownKind)
	}
	if strings.TrimSpace(r.ID) == "" {
		return core.Invalid("id", fmt.Errorf("%w: empty id", docstore.ErrInvalidPath))
	}
	if r.Kind.CardScoped() && strings.TrimSpace(r.CardID) == "" {
		return core.Invalid("card_id", core.ErrMissingCard)
	}
	return nil
}

// RefOf builds the Ref of a decoded record.
func RefOf(rec core.Record) Ref {
	ref := Ref{Kind: rec.Kind(), ID: rec.RecordID()}
	switch r := rec.(type) {
	case core.CardCharge:
		ref.CardID = r.CardID
	case core.CardSubscriptionCharge:
		ref.CardID = r.CardID
	}
	return ref
}

func userCollection(uid, name string) (docstore.CollectionRef, error) {
	return docstore.Collection(collUsers, uid, name)
}

func cardCollection(uid, cardID string) (docstore.CollectionRef, error) {
	return docstore.Collection(collUsers, uid, CollCards, cardID, CollCardCharges)
}

// collectionFor resolves the collection a kind is stored in.
func collectionFor(uid string, kind core.Kind, cardID string) (docstore.CollectionRef, error) {
	if kind.CardScoped() {
		if strings.TrimSpace(cardID) == "" {
			return docstore.CollectionRef{}, core.Invalid("card_id", core.ErrMissingCard)
		}
		return cardCollection(uid, cardID)
	}
	name, ok := kindCollections[kind]
	if !ok {
		return docstore.CollectionRef{}, core.Invalid("kind", core.ErrUnknownKind)
	}
	return userCollection(uid, name)
}

func docRef(uid string, ref Ref) (docstore.DocRef, error) {
	if err := ref.Validate(); err != nil {
		return docstore.DocRef{}, err
	}
	coll, err := collectionFor(uid, ref.Kind, ref.CardID)
	if err != nil {
		return docstore.DocRef{}, err
	}
	return coll.Doc(ref.ID)
}
