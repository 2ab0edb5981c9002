package validators

import "go.mongodb.org/mongo-driver/bson"

var MeetingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"slot_id",
			"calendar_id",
			"owner_id",
			"title",
			"participant_ids",
			"start_time",
			"end_time",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id":         bson.M{"bsonType": "string"},
			"slot_id":     bson.M{"bsonType": "string"},
			"calendar_id": bson.M{"bsonType": "string"},
			"owner_id":    bson.M{"bsonType": "string"},

			"title": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 255,
			},

			"description": bson.M{
				"bsonType":  "string",
				"maxLength": 1000,
			},

			"participant_ids": bson.M{
				"bsonType":    "array",
				"maxItems":    200,
				"uniqueItems": true,
				"items":       bson.M{"bsonType": "string"},
			},

			"start_time": bson.M{"bsonType": "date"},
			"end_time":   bson.M{"bsonType": "date"},
			"created_at": bson.M{"bsonType": "date"},
			"updated_at": bson.M{"bsonType": "date"},
		},
	},
}

var LeaseValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"_id", "token", "expires_at"},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":        bson.M{"bsonType": "string"},
			"token":      bson.M{"bsonType": "string"},
			"expires_at": bson.M{"bsonType": "date"},
			"created_at": bson.M{"bsonType": "date"},
		},
	},
}
