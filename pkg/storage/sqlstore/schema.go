package sqlstore

import (
	"math"

	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table and column names.
const (
	keysTable  = "conversation_keys"
	turnsTable = "conversation_turns"

	colKey       = "conversation_key"
	colUserID    = "user_id"
	colPreset    = "preset"
	colModel     = "model"
	colTopic     = "topic"
	colTitle     = "title"
	colSaved     = "saved"
	colCreatedAt = "created_at"
	colDeletedAt = "deleted_at"

	colID              = "id"
	colConversationKey = "conversation_key"
	colQuestion        = "question"
	colResponse        = "response"
)

var (
	keysColumns = []*schema.Column{
		{Name: colKey, Type: field.TypeString, Size: 128},
		{Name: colUserID, Type: field.TypeString},
		{Name: colPreset, Type: field.TypeString},
		{Name: colModel, Type: field.TypeString},
		{Name: colTopic, Type: field.TypeString, Size: math.MaxInt32},
		{Name: colTitle, Type: field.TypeString, Default: ""},
		{Name: colSaved, Type: field.TypeBool, Default: false},
		{Name: colCreatedAt, Type: field.TypeTime},
		{Name: colDeletedAt, Type: field.TypeTime, Nullable: true},
	}

	// keysTableSchema holds the schema information for the conversation_keys table.
	keysTableSchema = &schema.Table{
		Name:       keysTable,
		Columns:    keysColumns,
		PrimaryKey: []*schema.Column{keysColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "conversationkey_user_id",
				Unique:  false,
				Columns: []*schema.Column{keysColumns[1]},
			},
		},
	}

	turnsColumns = []*schema.Column{
		{Name: colID, Type: field.TypeInt64, Increment: true},
		{Name: colQuestion, Type: field.TypeString, Size: math.MaxInt32},
		{Name: colResponse, Type: field.TypeString, Size: math.MaxInt32, Default: ""},
		{Name: colSaved, Type: field.TypeBool, Default: false},
		{Name: colCreatedAt, Type: field.TypeTime},
		{Name: colConversationKey, Type: field.TypeString, Size: 128},
	}

	// turnsTableSchema holds the schema information for the conversation_turns table.
	turnsTableSchema = &schema.Table{
		Name:       turnsTable,
		Columns:    turnsColumns,
		PrimaryKey: []*schema.Column{turnsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "conversation_turns_conversation_keys_turns",
				Columns:    []*schema.Column{turnsColumns[5]},
				RefColumns: []*schema.Column{keysColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "conversationturn_conversation_key_created_at_id",
				Unique:  false,
				Columns: []*schema.Column{turnsColumns[5], turnsColumns[4], turnsColumns[0]},
			},
		},
	}

	// tables holds all the tables in the schema.
	tables = []*schema.Table{
		keysTableSchema,
		turnsTableSchema,
	}
)

func init() {
	turnsTableSchema.ForeignKeys[0].RefTable = keysTableSchema
}
